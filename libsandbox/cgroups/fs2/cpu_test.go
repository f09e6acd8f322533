package fs2

import (
	"strings"
	"testing"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func TestSetCpu(t *testing.T) {
	cgroups.TestMode = true
	defer func() { cgroups.TestMode = false }()
	dir := t.TempDir()

	r := &configs.Resources{
		CpuShares: 1024,
		CpuQuota:  150000,
		CpuPeriod: 100000,
	}
	if err := setCpu(dir, r); err != nil {
		t.Fatal(err)
	}

	weight, err := cgroups.ReadFile(dir, "cpu.weight")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(weight) != "39" {
		t.Errorf("cpu.weight = %q, want 39", weight)
	}

	max, err := cgroups.ReadFile(dir, "cpu.max")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(max) != "150000 100000" {
		t.Errorf("cpu.max = %q, want \"150000 100000\"", max)
	}
}

func TestSetCpuUnlimitedQuota(t *testing.T) {
	cgroups.TestMode = true
	defer func() { cgroups.TestMode = false }()
	dir := t.TempDir()

	r := &configs.Resources{CpuQuota: -1, CpuPeriod: 100000}
	if err := setCpu(dir, r); err != nil {
		t.Fatal(err)
	}
	max, err := cgroups.ReadFile(dir, "cpu.max")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(max) != "max 100000" {
		t.Errorf("cpu.max = %q, want \"max 100000\"", max)
	}
}

func TestSetCpuUnset(t *testing.T) {
	cgroups.TestMode = true
	defer func() { cgroups.TestMode = false }()
	dir := t.TempDir()

	if err := setCpu(dir, &configs.Resources{}); err != nil {
		t.Fatal(err)
	}
	if _, err := cgroups.ReadFile(dir, "cpu.weight"); err == nil {
		t.Error("cpu.weight written for an unset resource struct")
	}
}
