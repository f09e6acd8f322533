package fs2

import (
	"fmt"
	"strings"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

// Manager drives one cgroup directory on the unified (v2) hierarchy.
type Manager struct {
	config *configs.Cgroup
	// dirPath is like "/sys/fs/cgroup/user.slice/user-1001.slice/session-1.scope"
	dirPath string
	// controllers is content of "cgroup.controllers" file.
	// excludes pseudo-controllers ("devices" and "freezer").
	controllers map[string]struct{}
}

// NewManager creates a manager for cgroup v2 unified hierarchy.
// dirPath is like "/sys/fs/cgroup/user.slice/user-1001.slice/session-1.scope".
// If dirPath is empty, it is automatically set using config.
func NewManager(config *configs.Cgroup, dirPath string) (*Manager, error) {
	if dirPath == "" {
		var err error
		dirPath, err = defaultDirPath(config)
		if err != nil {
			return nil, err
		}
	}

	m := &Manager{
		config:  config,
		dirPath: dirPath,
	}
	return m, nil
}

func (m *Manager) getControllers() error {
	if m.controllers != nil {
		return nil
	}

	data, err := cgroups.ReadFile(m.dirPath, "cgroup.controllers")
	if err != nil {
		if m.config.Rootless && m.config.Path == "" {
			return nil
		}
		return err
	}
	fields := strings.Fields(data)
	m.controllers = make(map[string]struct{}, len(fields))
	for _, c := range fields {
		m.controllers[c] = struct{}{}
	}

	return nil
}

func (m *Manager) Apply(pid int) error {
	if err := CreateCgroupPath(m.dirPath, m.config); err != nil {
		// Related tests:
		// - "runc create (no limits + no cgrouppath + no permission) succeeds"
		// - "runc create (rootless + no limits + cgrouppath + no permission) fails with permission error"
		// - "runc create (rootless + limits + no cgrouppath + no permission) fails with informative error"
		if m.config.Rootless {
			if m.config.Path == "" {
				if blNeed, nErr := needAnyControllers(m.config.Resources); nErr == nil && !blNeed {
					return nil
				}
				return fmt.Errorf("rootless needs no limits + no cgrouppath when no permission is granted for cgroups: %w", err)
			}
		}
		return err
	}
	if pid == -1 {
		return nil
	}
	if m.config.ThreadedMode {
		// A threaded cgroup takes task ids, not process ids.
		return cgroups.WriteCgroupTask(m.dirPath, cgroups.CgroupThreads, pid)
	}
	return cgroups.WriteCgroupProc(m.dirPath, pid)
}

func (m *Manager) GetPids() ([]int, error) {
	return cgroups.GetPids(m.dirPath)
}

func (m *Manager) Set(r *configs.Resources) error {
	if r == nil {
		return nil
	}
	if err := m.getControllers(); err != nil {
		return err
	}
	// The unified fs write path is still one file per knob; only the
	// systemd manager gets true batched atomicity. Order is fixed so
	// failures are at least deterministic.
	if err := setCpu(m.dirPath, r); err != nil {
		return err
	}
	if err := setMemory(m.dirPath, r); err != nil {
		return err
	}
	if err := setPids(m.dirPath, r); err != nil {
		return err
	}
	if err := setIo(m.dirPath, r); err != nil {
		return err
	}
	if err := setHugeTlb(m.dirPath, r); err != nil {
		return err
	}
	// Unified is a v2-only map of raw file names to values.
	for k, v := range r.Unified {
		if err := cgroups.WriteFile(m.dirPath, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) Destroy() error {
	return cgroups.RemovePath(m.dirPath)
}

func (m *Manager) Path(_ string) string {
	return m.dirPath
}

// GetPaths is part of the state-file contract; v2 has a single unified path
// stored under the "" key.
func (m *Manager) GetPaths() map[string]string {
	return map[string]string{"": m.dirPath}
}

func (m *Manager) GetCgroup() *configs.Cgroup {
	return m.config
}

func (m *Manager) Exists() bool {
	return cgroups.PathExists(m.dirPath)
}
