package hypervisor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ScanVcpuThreads walks /proc/<pid>/task looking for the vcpu threads of a
// VMM process by their well-known comm names.
func ScanVcpuThreads(pid int) (VcpuThreadIDs, error) {
	tids := VcpuThreadIDs{Vcpus: make(map[int]int)}

	taskDir := filepath.Join("/proc", strconv.Itoa(pid), "task")
	entries, err := os.ReadDir(taskDir)
	if err != nil {
		return tids, err
	}
	for _, e := range entries {
		tid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join(taskDir, e.Name(), "comm"))
		if err != nil {
			// The thread exited between readdir and read.
			continue
		}
		idx, ok := parseVcpuComm(strings.TrimSpace(string(comm)))
		if !ok {
			continue
		}
		tids.Vcpus[idx] = tid
	}
	return tids, nil
}

// parseVcpuComm recognizes the vcpu thread names used by the common VMMs:
// "vcpu0" (cloud-hypervisor), "fc_vcpu 0" (firecracker) and "CPU 0/KVM"
// (qemu). Note comm is truncated to 15 characters by the kernel.
func parseVcpuComm(comm string) (int, bool) {
	switch {
	case strings.HasPrefix(comm, "vcpu"):
		return parseIndex(comm[len("vcpu"):])
	case strings.HasPrefix(comm, "fc_vcpu "):
		return parseIndex(comm[len("fc_vcpu "):])
	case strings.HasPrefix(comm, "CPU "):
		rest := comm[len("CPU "):]
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		return parseIndex(rest)
	}
	return 0, false
}

func parseIndex(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
