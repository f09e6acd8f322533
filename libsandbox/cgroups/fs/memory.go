package fs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

const (
	cgroupMemoryLimit   = "memory.limit_in_bytes"
	cgroupMemoryUsage   = "memory.usage_in_bytes"
	cgroupMemorySwLimit = "memory.memsw.limit_in_bytes"
)

type MemoryGroup struct{}

func (s *MemoryGroup) Name() string {
	return "memory"
}

func (s *MemoryGroup) Apply(path string, _ *configs.Resources, pid int) error {
	return apply(path, pid)
}

func setMemory(path string, val int64) error {
	if val == 0 {
		return nil
	}
	err := cgroups.WriteFile(path, cgroupMemoryLimit, strconv.FormatInt(val, 10))
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EBUSY) {
		return err
	}

	// EBUSY means the new limit is below current usage; report how much
	// is in use so the caller knows why the request was refused.
	usage, uerr := cgroups.ReadFile(path, cgroupMemoryUsage)
	if uerr != nil {
		usage = "unknown"
	} else {
		usage = strings.TrimSpace(usage)
	}
	return fmt.Errorf("unable to set memory limit to %d (current usage: %s)", val, usage)
}

func setSwap(path string, val int64) error {
	if val == 0 {
		return nil
	}
	return cgroups.WriteFile(path, cgroupMemorySwLimit, strconv.FormatInt(val, 10))
}

func setMemoryAndSwap(path string, r *configs.Resources) error {
	// If the memory update is set to -1 or the swap update < memory, we
	// should also set swap attribute first to avoid the write failing
	// because the new value crosses the old one.
	if r.Memory == -1 || (r.MemorySwap != 0 && r.MemorySwap < r.Memory) {
		if err := setSwap(path, r.MemorySwap); err != nil {
			return err
		}
		return setMemory(path, r.Memory)
	}
	if err := setMemory(path, r.Memory); err != nil {
		return err
	}
	return setSwap(path, r.MemorySwap)
}

func (s *MemoryGroup) Set(path string, r *configs.Resources) error {
	if err := setMemoryAndSwap(path, r); err != nil {
		return err
	}

	if r.MemoryReservation != 0 {
		if err := cgroups.WriteFile(path, "memory.soft_limit_in_bytes", strconv.FormatInt(r.MemoryReservation, 10)); err != nil {
			return err
		}
	}

	if r.MemorySwappiness == nil {
		return nil
	}
	swappiness := *r.MemorySwappiness
	if swappiness > 100 {
		return fmt.Errorf("invalid memory swappiness value: %d (valid range is 0-100)", swappiness)
	}
	return cgroups.WriteFile(path, "memory.swappiness", strconv.FormatUint(swappiness, 10))
}
