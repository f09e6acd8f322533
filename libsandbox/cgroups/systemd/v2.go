package systemd

import (
	"math"
	"path/filepath"
	"strings"
	"sync"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/fs2"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

// UnifiedManager manages a systemd transient unit on the v2 hierarchy.
// Resource updates are accumulated into one property list and submitted as
// a single dbus call, so an update either applies completely or not at all.
type UnifiedManager struct {
	mu      sync.Mutex
	cgroups *configs.Cgroup
	// path is like "/sys/fs/cgroup/system.slice/vmsandbox-<id>.scope"
	path  string
	dbus  *dbusConnManager
	fsMgr cgroups.Manager
}

func NewUnifiedManager(config *configs.Cgroup, path string) (*UnifiedManager, error) {
	m := &UnifiedManager{
		cgroups: config,
		path:    path,
		dbus:    newDbusConnManager(config.Rootless),
	}
	if err := m.initPath(); err != nil {
		return nil, err
	}

	fsMgr, err := fs2.NewManager(config, m.path)
	if err != nil {
		return nil, err
	}
	m.fsMgr = fsMgr
	return m, nil
}

// initPath figures out the fs2 path of the unit's cgroup from the slice
// and unit name, unless the caller pinned it already (restore does).
func (m *UnifiedManager) initPath() error {
	if m.path != "" {
		return nil
	}

	slice := "system.slice"
	if m.cgroups.Parent != "" {
		slice = m.cgroups.Parent
	}
	slicePath, err := ExpandSlice(slice)
	if err != nil {
		return err
	}
	m.path = filepath.Join(fs2.UnifiedMountpoint, slicePath, getUnitName(m.cgroups))
	return nil
}

func (m *UnifiedManager) Apply(pid int) error {
	var (
		c          = m.cgroups
		unitName   = getUnitName(c)
		properties []systemdDbus.Property
	)
	m.mu.Lock()
	defer m.mu.Unlock()

	slice := "system.slice"
	if c.Parent != "" {
		slice = c.Parent
	}

	properties = append(properties, systemdDbus.PropDescription("libsandbox sandbox "+c.Name))

	if strings.HasSuffix(unitName, ".slice") {
		// If we create a slice, the parent is defined via a Wants=.
		properties = append(properties, systemdDbus.PropWants(slice))
	} else {
		// Otherwise it's a scope, which we put into a Slice=.
		properties = append(properties, systemdDbus.PropSlice(slice))
		// Assume scopes always support delegation (supported since systemd v218).
		properties = append(properties, newProp("Delegate", true))
	}

	// only add pid if its valid, -1 is used w/ general slice creation.
	if pid != -1 {
		properties = append(properties, newProp("PIDs", []uint32{uint32(pid)}))
	}

	// Always enable accounting, this gets us the same behaviour as the fs implementation,
	// plus the kernel has some problems with joining the memory cgroup at a later time.
	properties = append(properties,
		newProp("MemoryAccounting", true),
		newProp("CPUAccounting", true),
		newProp("IOAccounting", true),
		newProp("TasksAccounting", true),
	)

	// Assume DefaultDependencies= will always work (the check for it was previously broken.)
	properties = append(properties,
		newProp("DefaultDependencies", false))

	properties = append(properties, c.SystemdProps...)

	if err := startUnit(m.dbus, unitName, properties); err != nil {
		return err
	}

	// The unit owns the cgroup now; what remains is fs-level setup the
	// transient unit API cannot express (threaded mode in particular).
	return m.fsMgr.Apply(-1)
}

// unlimitedValue maps the -1 "no limit" sentinel to systemd's infinity.
func unlimitedValue(v int64) uint64 {
	if v == -1 {
		return math.MaxUint64
	}
	return uint64(v)
}

// addCpuQuota emits the CPU quota properties for one update.
//
// CPUQuotaPeriodUSec only exists since systemd v242; on older systemd the
// period is dropped (with a debug log) and only the per-second quota is
// set. Pass sdVer = -1 when the version is unknown.
func addCpuQuota(properties *[]systemdDbus.Property, quota int64, period uint64, sdVer int) {
	if period != 0 {
		if sdVer >= 242 {
			*properties = append(*properties,
				newProp("CPUQuotaPeriodUSec", period))
		} else {
			logrus.Debugf("systemd v%d is too old to support CPUQuotaPeriodSec "+
				" (setting will still be applied to cgroupfs)", sdVer)
		}
	}
	if quota != 0 || period != 0 {
		// corresponds to USEC_INFINITY in systemd
		cpuQuotaPerSecUSec := cgroups.ConvertCPUQuotaCPUPeriodToCgroupV2Value(quota, period)
		*properties = append(*properties,
			newProp("CPUQuotaPerSecUSec", cpuQuotaPerSecUSec))
	}
}

// genV2ResourcesProperties transforms one resource struct into the ordered
// property list for a single batched unit update. It performs no I/O; the
// caller owns submission (and with it, atomicity).
func genV2ResourcesProperties(r *configs.Resources, sdVer int) ([]systemdDbus.Property, error) {
	var properties []systemdDbus.Property

	// CPU. Shares of 0 mean "unset", which still emits the documented
	// cpu.weight default of 100 -- an update never silently drops a knob.
	properties = append(properties,
		newProp("CPUWeight", cgroups.ConvertCPUSharesToCgroupV2Value(r.CpuShares)))

	addCpuQuota(&properties, r.CpuQuota, r.CpuPeriod, sdVer)

	// Memory
	if r.Memory != 0 {
		properties = append(properties,
			newProp("MemoryMax", unlimitedValue(r.Memory)))
	}
	swap, err := cgroups.ConvertMemorySwapToCgroupV2Value(r.MemorySwap, r.Memory)
	if err != nil {
		return nil, err
	}
	if swap != 0 {
		properties = append(properties,
			newProp("MemorySwapMax", unlimitedValue(swap)))
	}
	if r.MemoryReservation != 0 {
		properties = append(properties,
			newProp("MemoryLow", unlimitedValue(r.MemoryReservation)))
	}

	// Pids
	if r.PidsLimit > 0 || r.PidsLimit == -1 {
		properties = append(properties,
			newProp("TasksAccounting", true),
			newProp("TasksMax", uint64(r.PidsLimit)))
	}

	// IO. Hugetlb has no systemd property and is handled by the fs2
	// write path below us.
	if r.BlkioWeight != 0 {
		properties = append(properties,
			newProp("IOWeight", cgroups.ConvertBlkIOToIOWeightValue(r.BlkioWeight)))
	}

	return properties, nil
}

func (m *UnifiedManager) Set(r *configs.Resources) error {
	if r == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	properties, err := genV2ResourcesProperties(r, systemdVersion(m.dbus))
	if err != nil {
		return err
	}

	// One batched call; systemd applies the lot or nothing.
	if err := setUnitProperties(m.dbus, getUnitName(m.cgroups), properties...); err != nil {
		return err
	}

	// Limits systemd cannot express (hugetlb, cpuset, raw Unified keys)
	// go through the fs2 file writes.
	return m.fsMgr.Set(r)
}

func (m *UnifiedManager) GetPids() ([]int, error) {
	return cgroups.GetPids(m.path)
}

func (m *UnifiedManager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unitName := getUnitName(m.cgroups)
	if err := stopUnit(m.dbus, unitName); err != nil {
		return err
	}

	// systemd 239 does not drop failed units automatically.
	resetFailedUnit(m.dbus, unitName)

	return m.fsMgr.Destroy()
}

func (m *UnifiedManager) Path(_ string) string {
	return m.path
}

// GetPaths is part of the state-file contract; the unified path is stored
// under the "" key.
func (m *UnifiedManager) GetPaths() map[string]string {
	return map[string]string{"": m.path}
}

func (m *UnifiedManager) GetCgroup() *configs.Cgroup {
	return m.cgroups
}

func (m *UnifiedManager) Exists() bool {
	return cgroups.PathExists(m.path)
}
