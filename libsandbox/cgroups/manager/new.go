package manager

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/fs"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/fs2"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/systemd"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

// New returns a cgroup manager suited to the host: the hierarchy is probed
// exactly once, so the fs/fs2/systemd split is decided here at startup and
// never re-examined on the hot path.
func New(config *configs.Cgroup) (cgroups.Manager, error) {
	return NewWithPaths(config, nil)
}

// NewWithPaths is like New, accepting the paths saved in a state file, for
// reconstructing a manager after a runtime restart.
func NewWithPaths(config *configs.Cgroup, paths map[string]string) (cgroups.Manager, error) {
	if config == nil {
		return nil, errors.New("cgroups/manager.New: config must not be nil")
	}
	if config.Systemd && !systemd.IsRunningSystemd() {
		return nil, errors.New("systemd not running on this host, cannot use systemd cgroups manager")
	}

	hier := cgroups.HostHierarchy()
	logrus.Debugf("building cgroup manager on the %s hierarchy (systemd: %v)", hier, config.Systemd)

	if hier == cgroups.Unified {
		path, err := getUnifiedPath(paths)
		if err != nil {
			return nil, fmt.Errorf("manager.NewWithPaths: inconsistent paths: %w", err)
		}
		if config.Systemd {
			return systemd.NewUnifiedManager(config, path)
		}
		return fs2.NewManager(config, path)
	}

	// Cgroup v1.
	if config.ThreadedMode {
		return nil, errors.New("threaded cgroup mode requires the unified hierarchy")
	}
	if config.Systemd {
		return systemd.NewLegacyManager(config, paths)
	}

	return fs.NewManager(config, paths)
}

// getUnifiedPath is an implementation detail of the state file format.
// Historically the runtime saves cgroup paths as a per-subsystem map (as
// returned by GetPaths()), but with v2 we only have one single unified path
// (with "" as a key).
//
// This function converts from that map to string (using "" as a key),
// and also checks that the map itself is sane.
func getUnifiedPath(paths map[string]string) (string, error) {
	if len(paths) > 1 {
		return "", fmt.Errorf("expected a single path, got %+v", paths)
	}
	path := paths[""]
	// can be empty
	if path != "" {
		if filepath.Clean(path) != path || !filepath.IsAbs(path) {
			return "", fmt.Errorf("invalid path: %q", path)
		}
	}

	return path, nil
}
