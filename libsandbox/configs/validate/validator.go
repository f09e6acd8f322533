package validate

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

type check func(config *configs.Config) error

func Validate(config *configs.Config) error {
	checks := []check{
		cgroupsCheck,
		hostname,
	}
	for _, c := range checks {
		if err := c(config); err != nil {
			return err
		}
	}
	return nil
}

// cgroupsCheck verifies the cgroup config is internally consistent before
// any manager is built from it.
func cgroupsCheck(config *configs.Config) error {
	c := config.Cgroups
	if c == nil {
		return errors.New("cgroup configuration is required")
	}
	if c.Path != "" && (c.Name != "" || c.Parent != "") {
		return fmt.Errorf("cgroup: either Path or Name and Parent should be used, got %+v", c)
	}
	if c.Path != "" {
		if filepath.Clean(c.Path) != c.Path || strings.Contains(c.Path, "..") {
			return fmt.Errorf("cgroup: invalid path %q", c.Path)
		}
	}
	if c.Systemd && c.Name != "" && strings.ContainsAny(c.Name, "/:") {
		return fmt.Errorf("cgroup: systemd unit name %q contains reserved characters", c.Name)
	}
	return nil
}

func hostname(config *configs.Config) error {
	// HOST_NAME_MAX on Linux.
	if len(config.Hostname) > 64 {
		return fmt.Errorf("hostname %q exceeds 64 characters", config.Hostname)
	}
	return nil
}
