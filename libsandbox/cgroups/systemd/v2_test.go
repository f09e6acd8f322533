package systemd

import (
	"math"
	"testing"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func findProp(props []systemdDbus.Property, name string) (interface{}, bool) {
	for _, p := range props {
		if p.Name == name {
			return p.Value.Value(), true
		}
	}
	return nil, false
}

func TestGenV2ResourcesPropertiesCPU(t *testing.T) {
	r := &configs.Resources{
		CpuShares: 1024,
		CpuQuota:  1000000,
		CpuPeriod: 500000,
	}
	props, err := genV2ResourcesProperties(r, 242)
	if err != nil {
		t.Fatal(err)
	}

	if v, ok := findProp(props, "CPUWeight"); !ok || v.(uint64) != 39 {
		t.Errorf("CPUWeight = %v, want 39", v)
	}
	if v, ok := findProp(props, "CPUQuotaPeriodUSec"); !ok || v.(uint64) != 500000 {
		t.Errorf("CPUQuotaPeriodUSec = %v, want 500000", v)
	}
	if v, ok := findProp(props, "CPUQuotaPerSecUSec"); !ok || v.(uint64) != 2000000 {
		t.Errorf("CPUQuotaPerSecUSec = %v, want 2000000", v)
	}
}

func TestGenV2ResourcesPropertiesOldSystemd(t *testing.T) {
	r := &configs.Resources{CpuQuota: 1000000, CpuPeriod: 500000}
	props, err := genV2ResourcesProperties(r, 241)
	if err != nil {
		t.Fatal(err)
	}

	// CPUQuotaPeriodUSec only exists since systemd v242.
	if _, ok := findProp(props, "CPUQuotaPeriodUSec"); ok {
		t.Error("CPUQuotaPeriodUSec emitted for systemd v241")
	}
	if v, ok := findProp(props, "CPUQuotaPerSecUSec"); !ok || v.(uint64) != 2000000 {
		t.Errorf("CPUQuotaPerSecUSec = %v, want 2000000", v)
	}
}

func TestGenV2ResourcesPropertiesDefaults(t *testing.T) {
	props, err := genV2ResourcesProperties(&configs.Resources{}, 242)
	if err != nil {
		t.Fatal(err)
	}

	// Unset shares still emit the documented default weight; an update
	// never silently drops a knob.
	if v, ok := findProp(props, "CPUWeight"); !ok || v.(uint64) != 100 {
		t.Errorf("CPUWeight = %v, want 100", v)
	}
	// No quota and no period means no quota properties at all.
	if _, ok := findProp(props, "CPUQuotaPerSecUSec"); ok {
		t.Error("CPUQuotaPerSecUSec emitted with quota and period both zero")
	}
	if _, ok := findProp(props, "CPUQuotaPeriodUSec"); ok {
		t.Error("CPUQuotaPeriodUSec emitted with quota and period both zero")
	}
}

func TestGenV2ResourcesPropertiesUnlimitedQuota(t *testing.T) {
	r := &configs.Resources{CpuQuota: -1, CpuPeriod: 100000}
	props, err := genV2ResourcesProperties(r, 242)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := findProp(props, "CPUQuotaPerSecUSec"); !ok || v.(uint64) != math.MaxUint64 {
		t.Errorf("CPUQuotaPerSecUSec = %v, want USEC_INFINITY", v)
	}
}

func TestGenV2ResourcesPropertiesMemoryPidsIO(t *testing.T) {
	r := &configs.Resources{
		Memory:            512 * 1024 * 1024,
		MemoryReservation: 256 * 1024 * 1024,
		PidsLimit:         100,
		BlkioWeight:       1000,
	}
	props, err := genV2ResourcesProperties(r, 242)
	if err != nil {
		t.Fatal(err)
	}

	if v, ok := findProp(props, "MemoryMax"); !ok || v.(uint64) != 512*1024*1024 {
		t.Errorf("MemoryMax = %v, want %d", v, 512*1024*1024)
	}
	if v, ok := findProp(props, "MemoryLow"); !ok || v.(uint64) != 256*1024*1024 {
		t.Errorf("MemoryLow = %v, want %d", v, 256*1024*1024)
	}
	if v, ok := findProp(props, "TasksMax"); !ok || v.(uint64) != 100 {
		t.Errorf("TasksMax = %v, want 100", v)
	}
	if v, ok := findProp(props, "IOWeight"); !ok || v.(uint64) != 10000 {
		t.Errorf("IOWeight = %v, want 10000", v)
	}
}

func TestGenV1ResourcesProperties(t *testing.T) {
	r := &configs.Resources{
		CpuShares:   1024,
		Memory:      512 * 1024 * 1024,
		BlkioWeight: 500,
	}
	props, err := genV1ResourcesProperties(r)
	if err != nil {
		t.Fatal(err)
	}

	// Shares pass through untouched on the legacy hierarchy.
	if v, ok := findProp(props, "CPUShares"); !ok || v.(uint64) != 1024 {
		t.Errorf("CPUShares = %v, want 1024", v)
	}
	if v, ok := findProp(props, "MemoryLimit"); !ok || v.(uint64) != 512*1024*1024 {
		t.Errorf("MemoryLimit = %v, want %d", v, 512*1024*1024)
	}
	if v, ok := findProp(props, "BlockIOWeight"); !ok || v.(uint64) != 500 {
		t.Errorf("BlockIOWeight = %v, want 500", v)
	}
}
