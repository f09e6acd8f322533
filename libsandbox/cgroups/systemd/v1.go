package systemd

import (
	"errors"
	"strings"
	"sync"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/fs"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

// LegacyManager manages a systemd transient unit on top of the v1
// hierarchy. The unit carries the properties systemd understands, while
// everything else goes through the fs manager's per-file writes, so a
// failed update can leave some controllers applied. That asymmetry with
// the unified manager is inherent to v1 and intentionally preserved.
type LegacyManager struct {
	mu      sync.Mutex
	cgroups *configs.Cgroup
	dbus    *dbusConnManager
	fsMgr   cgroups.Manager
}

func NewLegacyManager(cg *configs.Cgroup, paths map[string]string) (*LegacyManager, error) {
	if cg.Rootless {
		return nil, errors.New("cannot use rootless systemd cgroups manager on cgroup v1")
	}
	if cg.Resources != nil && cg.Resources.Unified != nil {
		return nil, cgroups.ErrV1NoUnified
	}
	fsMgr, err := fs.NewManager(cg, paths)
	if err != nil {
		return nil, err
	}
	return &LegacyManager{
		cgroups: cg,
		dbus:    newDbusConnManager(false),
		fsMgr:   fsMgr,
	}, nil
}

func (m *LegacyManager) Apply(pid int) error {
	var (
		c          = m.cgroups
		unitName   = getUnitName(c)
		slice      = "system.slice"
		properties []systemdDbus.Property
	)
	m.mu.Lock()
	defer m.mu.Unlock()

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
		newProp("BlockIOAccounting", true),
		newProp("TasksAccounting", true),
	)

	// Assume DefaultDependencies= will always work (the check for it was previously broken.)
	properties = append(properties,
		newProp("DefaultDependencies", false))

	properties = append(properties, c.SystemdProps...)

	if err := startUnit(m.dbus, unitName, properties); err != nil {
		return err
	}

	return m.joinCgroups(pid)
}

// joinCgroups puts the pid into the controllers systemd does not manage
// for us on v1 (cpuset in particular needs its pre-seeded files).
func (m *LegacyManager) joinCgroups(pid int) error {
	return m.fsMgr.Apply(pid)
}

// genV1ResourcesProperties builds the property list for one v1 update.
// Shares pass through untouched: the raw kernel range is what systemd
// expects for CPUShares on this hierarchy, unlike the unified remap.
func genV1ResourcesProperties(r *configs.Resources) ([]systemdDbus.Property, error) {
	var properties []systemdDbus.Property

	properties = append(properties, newProp("CPUShares", r.CpuShares))

	addCpuQuota(&properties, r.CpuQuota, r.CpuPeriod, -1)

	if r.Memory != 0 {
		properties = append(properties,
			newProp("MemoryLimit", uint64(r.Memory)))
	}

	if r.BlkioWeight != 0 {
		properties = append(properties,
			newProp("BlockIOWeight", uint64(r.BlkioWeight)))
	}

	if r.PidsLimit > 0 || r.PidsLimit == -1 {
		properties = append(properties,
			newProp("TasksAccounting", true),
			newProp("TasksMax", uint64(r.PidsLimit)))
	}

	return properties, nil
}

func (m *LegacyManager) Set(r *configs.Resources) error {
	if r == nil {
		return nil
	}
	if r.Unified != nil {
		return cgroups.ErrV1NoUnified
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	properties, err := genV1ResourcesProperties(r)
	if err != nil {
		return err
	}

	unitName := getUnitName(m.cgroups)
	if err := setUnitProperties(m.dbus, unitName, properties...); err != nil {
		return err
	}

	// Everything systemd has no property for still goes through the v1
	// file writes, one by one.
	return m.fsMgr.Set(r)
}

func (m *LegacyManager) GetPids() ([]int, error) {
	return m.fsMgr.GetPids()
}

func (m *LegacyManager) Destroy() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	unitName := getUnitName(m.cgroups)
	if err := stopUnit(m.dbus, unitName); err != nil {
		return err
	}
	// Both on success and on error, cleanup all the cgroups
	// we are aware of, as some of them were created directly
	// by Apply() and are not managed by systemd.
	return m.fsMgr.Destroy()
}

func (m *LegacyManager) Path(subsys string) string {
	return m.fsMgr.Path(subsys)
}

func (m *LegacyManager) GetPaths() map[string]string {
	return m.fsMgr.GetPaths()
}

func (m *LegacyManager) GetCgroup() *configs.Cgroup {
	return m.cgroups
}

func (m *LegacyManager) Exists() bool {
	return m.fsMgr.Exists()
}
