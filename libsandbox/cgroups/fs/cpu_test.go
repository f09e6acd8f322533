package fs

import (
	"strings"
	"testing"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func TestCpuSetShares(t *testing.T) {
	cgroups.TestMode = true
	defer func() { cgroups.TestMode = false }()
	path := t.TempDir()

	r := &configs.Resources{CpuShares: 512}
	cpu := &CpuGroup{}
	if err := cpu.Set(path, r); err != nil {
		t.Fatal(err)
	}

	value, err := cgroups.ReadFile(path, "cpu.shares")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(value) != "512" {
		t.Errorf("cpu.shares = %q, want 512", value)
	}
}

func TestCpuSetBandwidth(t *testing.T) {
	cgroups.TestMode = true
	defer func() { cgroups.TestMode = false }()
	path := t.TempDir()

	r := &configs.Resources{
		CpuQuota:  200000,
		CpuPeriod: 100000,
	}
	cpu := &CpuGroup{}
	if err := cpu.Set(path, r); err != nil {
		t.Fatal(err)
	}

	quota, err := cgroups.ReadFile(path, "cpu.cfs_quota_us")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(quota) != "200000" {
		t.Errorf("cpu.cfs_quota_us = %q, want 200000", quota)
	}
	period, err := cgroups.ReadFile(path, "cpu.cfs_period_us")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(period) != "100000" {
		t.Errorf("cpu.cfs_period_us = %q, want 100000", period)
	}
}
