package cgroups

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"github.com/moby/sys/mountinfo"
)

// NotFoundError is returned when a requested controller is not mounted on
// the legacy hierarchy.
type NotFoundError struct {
	Subsystem string
}

func (e *NotFoundError) Error() string {
	return "mountpoint for " + e.Subsystem + " not found"
}

func NewNotFoundError(sub string) error {
	return &NotFoundError{Subsystem: sub}
}

func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}

var (
	readMountinfoOnce sync.Once
	readMountinfoErr  error
	cgroupMountinfo   []*mountinfo.Info
)

// readCgroupMountinfo returns a list of cgroup v1 mounts (i.e. the ones
// with fstype of "cgroup") for the current running process.
//
// The results are cached (to avoid re-reading mountinfo which is relatively
// expensive), so it is assumed that cgroup mounts are not being changed.
func readCgroupMountinfo() ([]*mountinfo.Info, error) {
	readMountinfoOnce.Do(func() {
		cgroupMountinfo, readMountinfoErr = mountinfo.GetMounts(
			mountinfo.FSTypeFilter("cgroup"),
		)
	})
	return cgroupMountinfo, readMountinfoErr
}

// FindCgroupMountpoint returns the mountpoint of the given v1 controller.
// When cgroupPath is non-empty, only mounts under it are considered.
func FindCgroupMountpoint(cgroupPath, subsystem string) (string, error) {
	mi, err := readCgroupMountinfo()
	if err != nil {
		return "", err
	}

	for _, mount := range mi {
		if cgroupPath != "" && !strings.HasPrefix(mount.Mountpoint, cgroupPath) {
			continue
		}
		for _, opt := range strings.Split(mount.VFSOptions, ",") {
			if opt == subsystem || opt == "name="+subsystem {
				return mount.Mountpoint, nil
			}
		}
	}

	return "", NewNotFoundError(subsystem)
}

// GetOwnCgroup returns the relative path to the cgroup docker is running in.
func GetOwnCgroup(subsystem string) (string, error) {
	if IsCgroup2UnifiedMode() {
		return "", errUnified
	}
	cgroups, err := ParseCgroupFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}

	return getControllerPath(subsystem, cgroups)
}

// GetOwnCgroupPath returns the absolute path to the cgroup the calling
// process is in, for the given v1 controller.
func GetOwnCgroupPath(subsystem string) (string, error) {
	cgroup, err := GetOwnCgroup(subsystem)
	if err != nil {
		return "", err
	}

	// If subsystem is empty, we look for the cgroupv2 hybrid path.
	if len(subsystem) == 0 {
		return hybridMountpoint, nil
	}

	mnt, err := FindCgroupMountpoint("", subsystem)
	if err != nil {
		return "", err
	}
	return filepath.Join(mnt, cgroup), nil
}

var errUnified = errors.New("not implemented for cgroup v2 unified hierarchy")

func getControllerPath(subsystem string, cgroups map[string]string) (string, error) {
	if subsystem == "" {
		return "", errUnified
	}

	if p, ok := cgroups[subsystem]; ok {
		return p, nil
	}

	if p, ok := cgroups["name="+subsystem]; ok {
		return p, nil
	}

	return "", NewNotFoundError(subsystem)
}
