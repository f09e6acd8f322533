package cgroups

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// OpenFile opens a cgroup file under dir, making sure the resolved path
// stays on a cgroup filesystem. Symlink chasing out of the cgroup mount is
// what ErrInvalidPath guards against.
func OpenFile(dir, file string, flags int) (*os.File, error) {
	if dir == "" {
		return nil, fmt.Errorf("no directory specified for %s", file)
	}
	return openFile(dir, file, flags)
}

// ReadFile reads data from a cgroup file in dir.
func ReadFile(dir, file string) (string, error) {
	fd, err := OpenFile(dir, file, unix.O_RDONLY)
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", dir+"/"+file, err)
	}
	defer fd.Close()
	var buf bytes.Buffer

	_, err = buf.ReadFrom(fd)
	if err != nil {
		err = fmt.Errorf("failed to read %q: %w", dir+"/"+file, err)
	}
	return buf.String(), err
}

// WriteFile writes data to a cgroup file in dir. One call is one kernel
// write; on the legacy hierarchy callers issue many independent WriteFile
// calls, so a failure can leave earlier writes applied.
func WriteFile(dir, file, data string) error {
	fd, err := OpenFile(dir, file, unix.O_WRONLY)
	if err != nil {
		return wrapWrite(dir, file, data, err)
	}
	defer fd.Close()
	if _, err := fd.WriteString(data); err != nil {
		// Having data in the error message helps debugging a failed
		// limit, and the kernel puts nothing useful in errno here.
		return wrapWrite(dir, file, data, err)
	}
	return nil
}

const (
	cgroupfsDir    = "/sys/fs/cgroup"
	cgroupfsPrefix = cgroupfsDir + "/"
)

var (
	// TestMode is set from unit tests so that files can live in a
	// temporary directory instead of a real cgroup mount.
	TestMode bool

	cgroupFd     int = -1
	prepOnce     sync.Once
	prepErr      error
	resolveFlags uint64
)

func prepareOpenat2() error {
	prepOnce.Do(func() {
		fd, err := unix.Openat2(-1, cgroupfsDir, &unix.OpenHow{
			Flags: unix.O_DIRECTORY | unix.O_PATH,
		})
		if err != nil {
			prepErr = &os.PathError{Op: "openat2", Path: cgroupfsDir, Err: err}
			if err != unix.ENOSYS { //nolint:errorlint // unix errors are bare
				logrus.Warnf("falling back to securejoin: %s", prepErr)
			} else {
				logrus.Debug("openat2 not available, falling back to securejoin")
			}
			return
		}
		var st unix.Statfs_t
		if err := unix.Fstatfs(fd, &st); err != nil {
			prepErr = &os.PathError{Op: "statfs", Path: cgroupfsDir, Err: err}
			logrus.Warnf("falling back to securejoin: %s", prepErr)
			return
		}

		cgroupFd = fd

		resolveFlags = unix.RESOLVE_BENEATH | unix.RESOLVE_NO_MAGICLINKS
		if st.Type == unix.CGROUP2_SUPER_MAGIC {
			// cgroupv2 has a single mountpoint and no "cpu,cpuacct"
			// symlinks, so we can also pin the filesystem.
			resolveFlags |= unix.RESOLVE_NO_XDEV | unix.RESOLVE_NO_SYMLINKS
		}
	})
	return prepErr
}

func openFile(dir, file string, flags int) (*os.File, error) {
	mode := os.FileMode(0)
	if TestMode && flags&os.O_WRONLY != 0 {
		// Add O_CREATE to support tests writing into a tmpfs copy.
		flags |= os.O_TRUNC | os.O_CREATE
		mode = 0o600
	}
	path := path.Join(dir, file)
	if prepareOpenat2() != nil {
		return openFallback(path, flags, mode)
	}
	relPath := strings.TrimPrefix(path, cgroupfsPrefix)
	if len(relPath) == len(path) { // non-standard path, old system?
		return openFallback(path, flags, mode)
	}

	fd, err := unix.Openat2(cgroupFd, relPath,
		&unix.OpenHow{
			Resolve: resolveFlags,
			Flags:   uint64(flags) | unix.O_CLOEXEC,
			Mode:    uint64(mode),
		})
	if err != nil {
		err = &os.PathError{Op: "openat2", Path: path, Err: err}
		// Check if cgroupFd is still opened to cgroupfsDir
		// (happens when this package is incorrectly used
		// across the chroot/pivot_root/mntns boundary, or
		// when /sys/fs/cgroup is remounted).
		fdStr := "/proc/self/fd/" + fmt.Sprint(cgroupFd)
		fdDest, _ := os.Readlink(fdStr)
		if fdDest != cgroupfsDir {
			// Wrap the error so callers can still match errno.
			err = fmt.Errorf("cgroupFd %s unexpectedly opened to %s != %s: %w",
				fdStr, fdDest, cgroupfsDir, err)
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openFallback is the slow path, used on kernels without openat2 (or when
// the file is outside /sys/fs/cgroup). Replaced from tests.
var openFallback = openAndCheck

func openAndCheck(path string, flags int, mode os.FileMode) (*os.File, error) {
	if !strings.HasPrefix(path, cgroupfsPrefix) && !TestMode {
		return nil, fmt.Errorf("%w: %q is not under %s", ErrInvalidPath, path, cgroupfsDir)
	}
	// Resolve symlinks without escaping the cgroup mount.
	resolved, err := securejoin.SecureJoin("/", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	fd, err := os.OpenFile(resolved, flags, mode)
	if err != nil {
		return nil, err
	}
	if TestMode {
		return fd, nil
	}
	// Make sure the file we opened is actually on cgroupfs.
	var st unix.Statfs_t
	if err := unix.Fstatfs(int(fd.Fd()), &st); err != nil {
		_ = fd.Close()
		return nil, &os.PathError{Op: "statfs", Path: path, Err: err}
	}
	if st.Type != unix.CGROUP_SUPER_MAGIC && st.Type != unix.CGROUP2_SUPER_MAGIC {
		_ = fd.Close()
		return nil, fmt.Errorf("%w: %q is not on a cgroup filesystem", ErrInvalidPath, path)
	}
	return fd, nil
}
