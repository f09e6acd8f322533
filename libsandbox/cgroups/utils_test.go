package cgroups

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseCgroups(t *testing.T) {
	cgroups, err := ParseCgroupFile("/proc/self/cgroup")
	if err != nil {
		t.Fatal(err)
	}
	if IsCgroup2UnifiedMode() {
		if _, ok := cgroups[""]; !ok {
			t.Fatal("expected the unified entry under the empty key")
		}
		return
	}
	if _, ok := cgroups["cpu"]; !ok {
		t.Fatal("expected a cpu entry")
	}
}

func TestHostHierarchy(t *testing.T) {
	hier := HostHierarchy()
	if (hier == Unified) != IsCgroup2UnifiedMode() {
		t.Errorf("HostHierarchy() = %v, disagrees with IsCgroup2UnifiedMode", hier)
	}
	if Legacy.String() != "legacy" || Unified.String() != "unified" {
		t.Errorf("hierarchy strings = %q/%q", Legacy.String(), Unified.String())
	}
}

func TestParseCgroupFromReader(t *testing.T) {
	const data = `12:pids:/user.slice/user-1000.slice
11:cpu,cpuacct:/user.slice
0::/user.slice/user-1000.slice/session-3.scope
`
	want := map[string]string{
		"pids":    "/user.slice/user-1000.slice",
		"cpu":     "/user.slice",
		"cpuacct": "/user.slice",
		"":        "/user.slice/user-1000.slice/session-3.scope",
	}
	got, err := parseCgroupFromReader(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if _, err := parseCgroupFromReader(strings.NewReader("broken entry\n")); err == nil {
		t.Error("expected an error for a malformed entry")
	}
}

func TestGetTasksMissingFile(t *testing.T) {
	TestMode = true
	defer func() { TestMode = false }()

	_, err := GetTasks(t.TempDir(), CgroupThreads)
	if !os.IsNotExist(err) {
		t.Errorf("expected a not-exist error, got %v", err)
	}
}

func TestWriteCgroupTask(t *testing.T) {
	TestMode = true
	defer func() { TestMode = false }()

	dir := t.TempDir()
	if err := WriteCgroupTask(dir, CgroupTasks, 1234); err != nil {
		t.Fatal(err)
	}
	tids, err := GetTasks(dir, CgroupTasks)
	if err != nil {
		t.Fatal(err)
	}
	if len(tids) != 1 || tids[0] != 1234 {
		t.Errorf("got %v, want [1234]", tids)
	}

	// -1 must be a no-op, an empty dir must fail.
	if err := WriteCgroupTask(dir, CgroupTasks, -1); err != nil {
		t.Errorf("tid -1: %v", err)
	}
	if err := WriteCgroupTask("", CgroupTasks, 1); err == nil {
		t.Error("expected an error for an empty dir")
	}
}

func TestRemovePath(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := RemovePath(filepath.Join(dir, "a")); err != nil {
		t.Fatal(err)
	}
	if PathExists(filepath.Join(dir, "a")) {
		t.Error("directory still exists")
	}
	// Removing an already-removed path succeeds.
	if err := RemovePath(filepath.Join(dir, "a")); err != nil {
		t.Errorf("second removal: %v", err)
	}
}
