package resource

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/fs2"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

type taskMove struct {
	dir  string
	file string
	tid  int
}

func stubTaskIO(t *testing.T, list func(dir, file string) ([]int, error), write func(dir, file string, tid int) error) {
	t.Helper()
	oldList, oldWrite := listTasks, writeTask
	listTasks, writeTask = list, write
	t.Cleanup(func() {
		listTasks, writeTask = oldList, oldWrite
	})
}

func TestMoveTasksOutSwallowsESRCH(t *testing.T) {
	var moved []int
	stubTaskIO(t,
		func(dir, file string) ([]int, error) { return []int{10, 11, 12}, nil },
		func(dir, file string, tid int) error {
			moved = append(moved, tid)
			if tid == 11 {
				// The task exited between enumeration and the write.
				return unix.ESRCH
			}
			return nil
		})

	if err := moveTasksOut("/src", "/dst", cgroups.CgroupTasks, cgroups.CgroupTasks); err != nil {
		t.Fatalf("moveTasksOut = %v, want nil despite ESRCH", err)
	}
	if len(moved) != 3 {
		t.Errorf("moved %v, want all three tasks attempted", moved)
	}
}

func TestMoveTasksOutAbortsOnError(t *testing.T) {
	var moved []int
	stubTaskIO(t,
		func(dir, file string) ([]int, error) { return []int{10, 11, 12}, nil },
		func(dir, file string, tid int) error {
			moved = append(moved, tid)
			if tid == 11 {
				return unix.EPERM
			}
			return nil
		})

	if err := moveTasksOut("/src", "/dst", cgroups.CgroupTasks, cgroups.CgroupTasks); err == nil {
		t.Fatal("expected the EPERM to propagate")
	}
	if len(moved) != 2 {
		t.Errorf("moved %v, want the loop to stop at the failed task", moved)
	}
}

func TestMoveTasksOutMissingSource(t *testing.T) {
	var writes int
	stubTaskIO(t,
		func(dir, file string) ([]int, error) { return nil, os.ErrNotExist },
		func(dir, file string, tid int) error { writes++; return nil })

	// A source cgroup that is already gone means nothing left to move.
	if err := moveTasksOut("/src", "/dst", cgroups.CgroupTasks, cgroups.CgroupTasks); err != nil {
		t.Fatalf("moveTasksOut = %v, want nil for a vanished source", err)
	}
	if writes != 0 {
		t.Errorf("recorded %d writes, want none", writes)
	}
}

func TestTeardownV2ThreadedAscends(t *testing.T) {
	const (
		sandboxDir  = "/sys/fs/cgroup/vmsandbox/test/sandbox"
		overheadDir = "/sys/fs/cgroup/vmsandbox/test/overhead"
		parentDir   = "/sys/fs/cgroup/vmsandbox/test"
	)
	sandbox := &fakeManager{dir: sandboxDir}
	overhead := &fakeManager{dir: overheadDir}
	domain := &fakeManager{dir: parentDir}
	c := &CgroupsResource{
		sandboxID: "test",
		config: CgroupConfig{
			Path:         "/vmsandbox/test/sandbox",
			OverheadPath: "/vmsandbox/test/overhead",
			ThreadedMode: true,
		},
		sandboxMgr:  sandbox,
		overheadMgr: overhead,
		domainMgr:   domain,
		containers:  make(map[string]*configs.Resources),
	}

	var moves []taskMove
	stubTaskIO(t,
		func(dir, file string) ([]int, error) { return []int{42}, nil },
		func(dir, file string, tid int) error {
			moves = append(moves, taskMove{dir, file, tid})
			return nil
		})

	if err := c.teardownV2(); err != nil {
		t.Fatal(err)
	}

	// Children drain thread-by-thread into the direct parent, then the
	// parent's processes go to the root before the parent itself goes.
	want := []taskMove{
		{parentDir, cgroups.CgroupThreads, 42},
		{parentDir, cgroups.CgroupThreads, 42},
		{fs2.UnifiedMountpoint, cgroups.CgroupProcesses, 42},
	}
	if len(moves) != len(want) {
		t.Fatalf("moves = %+v, want %+v", moves, want)
	}
	for i := range want {
		if moves[i] != want[i] {
			t.Errorf("move %d = %+v, want %+v", i, moves[i], want[i])
		}
	}
	if sandbox.destroyed != 1 || overhead.destroyed != 1 || domain.destroyed != 1 {
		t.Errorf("destroy counts sandbox=%d overhead=%d domain=%d, want 1 each",
			sandbox.destroyed, overhead.destroyed, domain.destroyed)
	}
}

func TestTeardownV2Flat(t *testing.T) {
	sandbox := &fakeManager{dir: "/sys/fs/cgroup/vmsandbox/test"}
	c := &CgroupsResource{
		sandboxID:  "test",
		config:     CgroupConfig{Path: "/vmsandbox/test", SandboxCgroupOnly: true},
		sandboxMgr: sandbox,
		containers: make(map[string]*configs.Resources),
	}

	var moves []taskMove
	stubTaskIO(t,
		func(dir, file string) ([]int, error) {
			if dir != sandbox.dir {
				t.Errorf("enumerated %q, want the sandbox cgroup", dir)
			}
			return []int{7}, nil
		},
		func(dir, file string, tid int) error {
			moves = append(moves, taskMove{dir, file, tid})
			return nil
		})

	if err := c.teardownV2(); err != nil {
		t.Fatal(err)
	}
	if len(moves) != 1 || moves[0] != (taskMove{fs2.UnifiedMountpoint, cgroups.CgroupProcesses, 7}) {
		t.Errorf("moves = %+v, want one move of pid 7 to the root", moves)
	}
	if sandbox.destroyed != 1 {
		t.Errorf("Destroy called %d times, want 1", sandbox.destroyed)
	}
}
