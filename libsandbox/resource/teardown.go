package resource

import (
	"errors"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/fs2"
)

// Swapped out in tests.
var (
	listTasks = cgroups.GetTasks
	writeTask = cgroups.WriteCgroupTask
)

// moveTasksOut drains srcDir's id-list file into destDir. An ESRCH on a
// single move means the task exited between enumeration and the write (an
// inherent TOCTOU race in any enumerate-then-act loop) and counts as
// success; any other error aborts and propagates.
func moveTasksOut(srcDir, destDir, srcFile, destFile string) error {
	tids, err := listTasks(srcDir, srcFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, tid := range tids {
		err := writeTask(destDir, destFile, tid)
		if err == nil || errors.Is(err, unix.ESRCH) {
			continue
		}
		return err
	}
	return nil
}

func (c *CgroupsResource) teardown() error {
	if c.config.Systemd {
		// Stopping the transient unit reaps its tasks and its cgroup.
		return c.sandboxMgr.Destroy()
	}
	if cgroups.IsCgroup2UnifiedMode() {
		return c.teardownV2()
	}
	return c.teardownV1()
}

// teardownV1 empties each controller directory into the hierarchy root,
// thread by thread, then removes the directories. The kernel refuses to
// rmdir a v1 cgroup with attached tasks. Order between sandbox and
// overhead is unconstrained.
func (c *CgroupsResource) teardownV1() error {
	for _, mgr := range []cgroups.Manager{c.sandboxMgr, c.overheadMgr} {
		if mgr == nil {
			continue
		}
		for subsys, dir := range mgr.GetPaths() {
			root, err := cgroups.FindCgroupMountpoint("", subsys)
			if err != nil {
				if cgroups.IsNotFound(err) {
					continue
				}
				return err
			}
			if err := moveTasksOut(dir, root, cgroups.CgroupTasks, cgroups.CgroupTasks); err != nil {
				return err
			}
		}
		if err := mgr.Destroy(); err != nil {
			return err
		}
	}
	return nil
}

// teardownV2 unwinds the unified layout bottom-up. In threaded mode a task
// may only move to its direct parent, not to the root, and the children
// must be gone before the parent can be dealt with: move sandbox threads
// to the parent, remove sandbox, same for overhead, then ascend and move
// the parent's processes to the root before removing the parent. Skipping
// that last step leaves a zombie cgroup directory behind.
func (c *CgroupsResource) teardownV2() error {
	if !c.config.ThreadedMode {
		dir := c.sandboxMgr.Path("")
		if err := moveTasksOut(dir, fs2.UnifiedMountpoint, cgroups.CgroupProcesses, cgroups.CgroupProcesses); err != nil {
			return err
		}
		return c.sandboxMgr.Destroy()
	}

	parent := filepath.Dir(c.sandboxMgr.Path(""))
	for _, mgr := range []cgroups.Manager{c.sandboxMgr, c.overheadMgr} {
		if mgr == nil {
			continue
		}
		if err := moveTasksOut(mgr.Path(""), parent, cgroups.CgroupThreads, cgroups.CgroupThreads); err != nil {
			return err
		}
		if err := mgr.Destroy(); err != nil {
			return err
		}
	}

	if err := moveTasksOut(parent, fs2.UnifiedMountpoint, cgroups.CgroupProcesses, cgroups.CgroupProcesses); err != nil {
		return err
	}
	if c.domainMgr != nil {
		return c.domainMgr.Destroy()
	}
	return cgroups.RemovePath(parent)
}
