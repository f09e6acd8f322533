package resource

import (
	"fmt"
	"os"
	"strings"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/manager"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

// State is the restart-safe snapshot of a sandbox's cgroup layout. Live
// kernel handles cannot cross a process boundary, so only the paths are
// persisted and the managers are rebuilt on restore.
type State struct {
	Path              string `json:"path"`
	OverheadPath      string `json:"overhead_path"`
	SandboxCgroupOnly bool   `json:"sandbox_cgroup_only"`
}

func (c *CgroupsResource) Save() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{
		Path:              c.config.Path,
		OverheadPath:      c.config.OverheadPath,
		SandboxCgroupOnly: c.config.SandboxCgroupOnly,
	}
}

// RestoreCgroupsResource re-opens the cgroups recorded in state after a
// runtime restart. It fails if the kernel paths no longer exist: silently
// recreating them would hand back a fresh, semantically different cgroup
// with no tasks and no limits.
func RestoreCgroupsResource(sandboxID string, state State) (*CgroupsResource, error) {
	useSystemd := strings.Count(state.Path, ":") == 2
	cfg := CgroupConfig{
		Path:              state.Path,
		OverheadPath:      state.OverheadPath,
		SandboxCgroupOnly: state.SandboxCgroupOnly,
		Systemd:           useSystemd,
		ThreadedMode:      state.OverheadPath != "" && cgroups.IsCgroup2UnifiedMode(),
	}

	c := &CgroupsResource{
		sandboxID:  sandboxID,
		config:     cfg,
		containers: make(map[string]*configs.Resources),
		// The cgroups (and any systemd unit) already exist.
		unitStarted: true,
	}

	sandboxCg, err := cgroupConfigFromPath(cfg.Path, useSystemd, cfg.ThreadedMode)
	if err != nil {
		return nil, err
	}
	if c.sandboxMgr, err = manager.New(sandboxCg); err != nil {
		return nil, err
	}
	if !c.sandboxMgr.Exists() {
		return nil, fmt.Errorf("restore sandbox %s: cgroup %q: %w", sandboxID, cfg.Path, os.ErrNotExist)
	}

	if cfg.OverheadPath != "" {
		overheadCg, err := cgroupConfigFromPath(cfg.OverheadPath, false, cfg.ThreadedMode)
		if err != nil {
			return nil, err
		}
		if c.overheadMgr, err = manager.New(overheadCg); err != nil {
			return nil, err
		}
		if !c.overheadMgr.Exists() {
			return nil, fmt.Errorf("restore sandbox %s: overhead cgroup %q: %w", sandboxID, cfg.OverheadPath, os.ErrNotExist)
		}
	}

	if cfg.ThreadedMode {
		domainCg, err := cgroupConfigFromPath(parentPath(cfg.Path), false, false)
		if err != nil {
			return nil, err
		}
		if c.domainMgr, err = manager.New(domainCg); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func parentPath(p string) string {
	if i := strings.LastIndexByte(p, '/'); i > 0 {
		return p[:i]
	}
	return "/"
}
