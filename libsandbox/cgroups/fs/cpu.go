package fs

import (
	"errors"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

type CpuGroup struct{}

func (s *CpuGroup) Name() string {
	return "cpu"
}

func (s *CpuGroup) Apply(path string, r *configs.Resources, pid int) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	// Join only; the bandwidth knobs are applied later by Set.
	return cgroups.WriteCgroupProc(path, pid)
}

// Set applies the cpu controller knobs with one file write each. Shares go
// out exactly as given: the v1 kernel interface already speaks the
// [2, 262144] range, so there is no remapping on this hierarchy.
func (s *CpuGroup) Set(path string, r *configs.Resources) error {
	if r.CpuShares != 0 {
		shares := r.CpuShares
		if err := cgroups.WriteFile(path, "cpu.shares", strconv.FormatUint(shares, 10)); err != nil {
			return err
		}
		// The kernel clamps out-of-range values instead of failing the
		// write; surface that as an error rather than a silent rewrite.
		sharesRead, err := cgroups.ReadFile(path, "cpu.shares")
		if err != nil {
			return err
		}
		actual, err := cgroups.ParseCgroupValue(sharesRead)
		if err != nil {
			return &cgroups.ParseError{Path: path, File: "cpu.shares", Err: err}
		}
		if shares > actual {
			return errors.New("the maximum allowed cpu-shares is " + strconv.FormatUint(actual, 10))
		} else if shares < actual {
			return errors.New("the minimum allowed cpu-shares is " + strconv.FormatUint(actual, 10))
		}
	}

	var period string
	if r.CpuPeriod != 0 {
		period = strconv.FormatUint(r.CpuPeriod, 10)
		if err := cgroups.WriteFile(path, "cpu.cfs_period_us", period); err != nil {
			// Sometimes when the period to be set is smaller
			// than the current one, it is rejected by the kernel
			// (EINVAL) as old_quota/new_period exceeds the parent
			// cgroup quota limit. If this happens and the quota is
			// going to be set, ignore the error for now and retry
			// after setting the quota.
			if !errors.Is(err, unix.EINVAL) || r.CpuQuota == 0 {
				return err
			}
		} else {
			period = ""
		}
	}
	if r.CpuQuota != 0 {
		if err := cgroups.WriteFile(path, "cpu.cfs_quota_us", strconv.FormatInt(r.CpuQuota, 10)); err != nil {
			return err
		}
		if period != "" {
			if err := cgroups.WriteFile(path, "cpu.cfs_period_us", period); err != nil {
				return err
			}
		}
	}
	return nil
}
