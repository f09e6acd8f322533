package fs2

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

// UnifiedMountpoint is where the v2 hierarchy lives.
const UnifiedMountpoint = "/sys/fs/cgroup"

func defaultDirPath(c *configs.Cgroup) (string, error) {
	if (c.Name != "" || c.Parent != "") && c.Path != "" {
		return "", fmt.Errorf("cgroup: either Path or Name and Parent should be used, got %+v", c)
	}

	innerPath := c.Path
	if innerPath == "" {
		innerPath = filepath.Join(c.Parent, c.Name)
	}
	if filepath.Clean(innerPath) != innerPath || strings.HasPrefix(innerPath, "../") {
		return "", fmt.Errorf("%w: %q", cgroups.ErrInvalidPath, innerPath)
	}
	if filepath.IsAbs(innerPath) {
		return filepath.Join(UnifiedMountpoint, innerPath), nil
	}

	// A relative path nests under the cgroup of the calling process.
	ownCgroup, err := cgroups.ParseCgroupFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	return filepath.Join(UnifiedMountpoint, ownCgroup[""], innerPath), nil
}
