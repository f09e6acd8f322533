// Package resource manages the host-side cgroups of one VM sandbox: a
// sandbox cgroup billed for the guest itself and, optionally, an overhead
// cgroup for the non-guest threads of the VMM.
package resource

import (
	"path/filepath"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
)

const (
	// All sandbox cgroups live under a common subtree so host tooling can
	// account for every guest at a glance.
	sandboxCgroupRoot  = "/vmsandbox"
	overheadCgroupRoot = "/vmsandbox_overhead"

	sandboxLeaf  = "sandbox"
	overheadLeaf = "overhead"
)

// CgroupConfig carries everything needed to build (or rebuild, after a
// runtime restart) the sandbox's cgroup managers. It is computed once per
// sandbox and persisted verbatim, never regenerated from scratch.
type CgroupConfig struct {
	// Path of the sandbox cgroup, relative to the hierarchy root. With
	// Systemd set, it is of the "slice:prefix:name" form instead.
	Path string `json:"path"`

	// OverheadPath is the cgroup for non-guest host threads. Empty when
	// SandboxCgroupOnly is set.
	OverheadPath string `json:"overhead_path"`

	// SandboxCgroupOnly keeps the whole VMM process, vcpus and all, in
	// the sandbox cgroup.
	SandboxCgroupOnly bool `json:"sandbox_cgroup_only"`

	// Systemd routes sandbox cgroup writes through a transient unit.
	Systemd bool `json:"systemd,omitempty"`

	// ThreadedMode marks the unified-hierarchy layout where sandbox and
	// overhead are threaded siblings under one per-sandbox domain, so
	// that individual vcpu threads can be moved between them.
	ThreadedMode bool `json:"threaded_mode,omitempty"`
}

// NewCgroupConfig derives the cgroup layout for a sandbox.
//
// On the legacy hierarchy the sandbox and overhead cgroups are independent
// trees (<root>/<sid> and <overhead root>/<sid>): v1 is thread-granular
// everywhere, so vcpu threads can be moved between them freely.
//
// On the unified hierarchy a thread may only be distributed within one
// threaded subtree, so both cgroups become threaded siblings under a
// per-sandbox domain: <root>/<sid>/sandbox and <root>/<sid>/overhead.
func NewCgroupConfig(sandboxID, cgroupPath string, sandboxCgroupOnly, useSystemd bool) CgroupConfig {
	base := cgroupPath
	if base == "" && !useSystemd {
		base = filepath.Join(sandboxCgroupRoot, sandboxID)
	}

	c := CgroupConfig{
		SandboxCgroupOnly: sandboxCgroupOnly,
		Systemd:           useSystemd,
	}
	switch {
	case useSystemd:
		if base == "" {
			base = "system.slice:vmsandbox:" + sandboxID
		}
		c.Path = base
	case sandboxCgroupOnly:
		c.Path = base
	case cgroups.IsCgroup2UnifiedMode():
		c.ThreadedMode = true
		c.Path = filepath.Join(base, sandboxLeaf)
		c.OverheadPath = filepath.Join(base, overheadLeaf)
	default:
		c.Path = base
		c.OverheadPath = filepath.Join(overheadCgroupRoot, sandboxID)
	}
	return c
}
