package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

// initPaths figures out the absolute path of every mounted v1 controller
// for the given cgroup config. Controllers that are not mounted are
// silently skipped; Set reports a friendly error later if a limit actually
// needs one of them.
func initPaths(cg *configs.Cgroup) (map[string]string, error) {
	inner, err := innerPath(cg)
	if err != nil {
		return nil, err
	}

	paths := make(map[string]string)
	for _, sys := range subsystems {
		name := sys.Name()
		path, err := subsysPath(inner, name)
		if err != nil {
			if cgroups.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		paths[name] = path
	}
	return paths, nil
}

func innerPath(cg *configs.Cgroup) (string, error) {
	if (cg.Name != "" || cg.Parent != "") && cg.Path != "" {
		return "", fmt.Errorf("cgroup: either Path or Name and Parent should be used")
	}

	inner := cg.Path
	if inner == "" {
		inner = filepath.Join(cg.Parent, cg.Name)
	}
	// Do not allow the inner path to escape the cgroup mountpoint.
	if filepath.Clean(inner) != inner || inner == ".." || strings.HasPrefix(inner, "../") {
		return "", fmt.Errorf("%w: %q", cgroups.ErrInvalidPath, inner)
	}
	return inner, nil
}

func subsysPath(inner, subsystem string) (string, error) {
	// If the cgroup path is absolute, it is taken relative to the
	// controller mountpoint.
	if filepath.IsAbs(inner) {
		mnt, err := cgroups.FindCgroupMountpoint("", subsystem)
		if err != nil {
			return "", err
		}
		return filepath.Join(mnt, inner), nil
	}

	// Relative paths nest under the cgroup of the calling process.
	parentPath, err := cgroups.GetOwnCgroupPath(subsystem)
	if err != nil {
		return "", err
	}
	return filepath.Join(parentPath, inner), nil
}

func apply(path string, pid int) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	return cgroups.WriteCgroupProc(path, pid)
}
