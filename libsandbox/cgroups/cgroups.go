package cgroups

import (
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

// Hierarchy identifies which cgroup hierarchy the host mounts at
// /sys/fs/cgroup. It is probed once at startup and never changes for the
// lifetime of the process.
type Hierarchy int

const (
	// Legacy is the cgroup v1 hierarchy (one mount per controller).
	Legacy Hierarchy = iota
	// Unified is the cgroup v2 hierarchy (single mount, batched control).
	Unified
)

func (h Hierarchy) String() string {
	if h == Unified {
		return "unified"
	}
	return "legacy"
}

// HostHierarchy returns the hierarchy the host is running.
func HostHierarchy() Hierarchy {
	if IsCgroup2UnifiedMode() {
		return Unified
	}
	return Legacy
}

// Manager is a handle bound to one kernel cgroup (or, on the legacy
// hierarchy, one cgroup path per mounted controller).
type Manager interface {
	// Apply creates the cgroup, if not yet created, and adds the process
	// with the specified pid into that cgroup. A pid of -1 creates the
	// cgroup without attaching anything.
	Apply(pid int) error

	// GetPids returns the PIDs of the processes inside the cgroup.
	GetPids() ([]int, error)

	// Set sets the cgroup resources.
	Set(r *configs.Resources) error

	// Destroy removes the cgroup. The caller is responsible for moving
	// any remaining tasks out first; the kernel refuses to remove a
	// populated cgroup.
	Destroy() error

	// Path returns the absolute cgroup path for the given controller
	// ("" asks for the unified path on cgroup v2).
	Path(subsystem string) string

	// GetPaths returns cgroup path(s) to save in a state file, to be
	// able to restore the manager after a runtime restart.
	GetPaths() map[string]string

	// GetCgroup returns the cgroup configuration the manager was built from.
	GetCgroup() *configs.Cgroup

	// Exists reports whether the cgroup directory is still present.
	Exists() bool
}
