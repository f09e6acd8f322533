package cgroups

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Code in this file is shared by the fs2 write path and the systemd
// property path: both express limits in unified-hierarchy units, while the
// input is carried around in legacy-hierarchy units.

// ConvertCPUSharesToCgroupV2Value converts CPU shares, valid on the legacy
// hierarchy in [2, 262144], to the unified cpu.weight range of [1, 10000].
//
// A value of 0 means the caller left shares unset; it maps straight to 100,
// the documented cpu.weight default, instead of going through the formula.
func ConvertCPUSharesToCgroupV2Value(cpuShares uint64) uint64 {
	if cpuShares == 0 {
		return 100
	}
	if cpuShares < 2 {
		cpuShares = 2
	} else if cpuShares > 262144 {
		cpuShares = 262144
	}
	return 1 + ((cpuShares-2)*9999)/262142
}

// ConvertCPUQuotaCPUPeriodToCgroupV2Value computes the CPUQuotaPerSecUSec
// systemd property (and the numerator of cpu.max) from a legacy quota/period
// pair. A quota <= 0 means unlimited and yields math.MaxUint64, systemd's
// USEC_INFINITY. A zero period falls back to the kernel default of 100ms.
//
// systemd internally converts CPUQuotaPerSecUSec to an integer percentage of
// a CPU, so the result is rounded up to the next 10ms multiple; rounding
// down would under-provision the caller's request.
func ConvertCPUQuotaCPUPeriodToCgroupV2Value(quota int64, period uint64) uint64 {
	if quota <= 0 {
		return math.MaxUint64
	}
	if period == 0 {
		period = 100000
	}
	val := uint64(quota) * 1000000 / period
	if val%10000 != 0 {
		val = ((val / 10000) + 1) * 10000
	}
	return val
}

// ConvertMemorySwapToCgroupV2Value converts a legacy memsw limit (memory +
// swap) to the unified memory.swap.max value (swap only).
func ConvertMemorySwapToCgroupV2Value(memorySwap, memory int64) (int64, error) {
	switch {
	case memory == -1 && memorySwap == 0:
		// -1 is "max", 0 is "unset", so technically that makes no sense,
		// but many controls are set to unlimited this way.
		return -1, nil
	case memorySwap == -1, memorySwap == 0:
		// Unlimited or unset.
		return memorySwap, nil
	case memory == -1:
		return 0, errors.New("unable to set swap limit without memory limit")
	case memory == 0:
		return 0, errors.New("unable to set swap limit without memory limit not being set")
	case memory < 0:
		return 0, fmt.Errorf("invalid memory value: %d", memory)
	case memorySwap < memory:
		return 0, errors.New("memory+swap limit should be >= memory limit")
	}
	return memorySwap - memory, nil
}

// ConvertBlkIOToIOWeightValue converts a legacy blkio.weight in [10, 1000]
// to an io.weight value in [1, 10000].
func ConvertBlkIOToIOWeightValue(blkIoWeight uint16) uint64 {
	if blkIoWeight == 0 {
		return 0
	}
	return 1 + (uint64(blkIoWeight)-10)*9999/990
}

// ParseUint parses a cgroup file value as an unsigned integer, treating
// negative values as 0 when base/bitSize allow it (some cgroup files report
// -1 for "unlimited").
func ParseUint(s string, base, bitSize int) (uint64, error) {
	value, err := strconv.ParseUint(s, base, bitSize)
	if err != nil {
		intValue, intErr := strconv.ParseInt(s, base, bitSize)
		// 1. Handle negative values greater than MinInt64 (and)
		// 2. Handle negative values lesser than MinInt64
		if intErr == nil && intValue < 0 {
			return 0, nil
		} else if errors.Is(intErr, strconv.ErrRange) && intValue < 0 {
			return 0, nil
		}
		return value, err
	}
	return value, nil
}

// ParseCgroupValue reads a single-value cgroup file body ("max" aware).
func ParseCgroupValue(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "max" {
		return math.MaxUint64, nil
	}
	return ParseUint(s, 10, 64)
}
