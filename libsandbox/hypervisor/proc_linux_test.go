package hypervisor

import (
	"os"
	"testing"
)

func TestParseVcpuComm(t *testing.T) {
	tests := []struct {
		comm string
		idx  int
		ok   bool
	}{
		{comm: "vcpu0", idx: 0, ok: true},
		{comm: "vcpu12", idx: 12, ok: true},
		{comm: "fc_vcpu 3", idx: 3, ok: true},
		{comm: "CPU 7/KVM", idx: 7, ok: true},
		{comm: "CPU 10/KVM", idx: 10, ok: true},
		{comm: "vcpu", ok: false},
		{comm: "vcpu-1", ok: false},
		{comm: "iothread", ok: false},
		{comm: "virtiofsd", ok: false},
		{comm: "", ok: false},
	}
	for _, tc := range tests {
		idx, ok := parseVcpuComm(tc.comm)
		if ok != tc.ok || (ok && idx != tc.idx) {
			t.Errorf("parseVcpuComm(%q) = (%d, %v), want (%d, %v)", tc.comm, idx, ok, tc.idx, tc.ok)
		}
	}
}

func TestScanVcpuThreadsSelf(t *testing.T) {
	// The test binary has no vcpu threads; the scan must still succeed.
	tids, err := ScanVcpuThreads(os.Getpid())
	if err != nil {
		t.Fatal(err)
	}
	if len(tids.Vcpus) != 0 {
		t.Errorf("found unexpected vcpu threads: %v", tids.Vcpus)
	}
}

func TestScanVcpuThreadsNoSuchPid(t *testing.T) {
	if _, err := ScanVcpuThreads(-1); err == nil {
		t.Error("expected error for a nonexistent pid")
	}
}
