package fs2

import (
	"strconv"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func isCpuSet(r *configs.Resources) bool {
	return r.CpuShares != 0 || r.CpuQuota != 0 || r.CpuPeriod != 0
}

func isCpusetSet(r *configs.Resources) bool {
	return r.CpusetCpus != "" || r.CpusetMems != ""
}

func setCpu(dirPath string, r *configs.Resources) error {
	if isCpusetSet(r) {
		if r.CpusetCpus != "" {
			if err := cgroups.WriteFile(dirPath, "cpuset.cpus", r.CpusetCpus); err != nil {
				return err
			}
		}
		if r.CpusetMems != "" {
			if err := cgroups.WriteFile(dirPath, "cpuset.mems", r.CpusetMems); err != nil {
				return err
			}
		}
	}
	if !isCpuSet(r) {
		return nil
	}

	// The v1 shares range has to be remapped into cpu.weight.
	if r.CpuShares != 0 {
		weight := cgroups.ConvertCPUSharesToCgroupV2Value(r.CpuShares)
		if err := cgroups.WriteFile(dirPath, "cpu.weight", strconv.FormatUint(weight, 10)); err != nil {
			return err
		}
	}

	if r.CpuQuota != 0 || r.CpuPeriod != 0 {
		str := "max"
		if r.CpuQuota > 0 {
			str = strconv.FormatInt(r.CpuQuota, 10)
		}
		period := r.CpuPeriod
		if period == 0 {
			// This default value is documented in
			// https://www.kernel.org/doc/html/latest/admin-guide/cgroup-v2.html
			period = 100000
		}
		str += " " + strconv.FormatUint(period, 10)
		if err := cgroups.WriteFile(dirPath, "cpu.max", str); err != nil {
			return err
		}
	}

	return nil
}
