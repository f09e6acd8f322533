package resource

import (
	"errors"
	"os"
	"testing"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func TestSaveState(t *testing.T) {
	c := &CgroupsResource{
		sandboxID: "test",
		config: CgroupConfig{
			Path:              "/vmsandbox/test/sandbox",
			OverheadPath:      "/vmsandbox/test/overhead",
			SandboxCgroupOnly: false,
		},
		containers: make(map[string]*configs.Resources),
	}
	st := c.Save()
	if st.Path != "/vmsandbox/test/sandbox" {
		t.Errorf("Path = %q", st.Path)
	}
	if st.OverheadPath != "/vmsandbox/test/overhead" {
		t.Errorf("OverheadPath = %q", st.OverheadPath)
	}
	if st.SandboxCgroupOnly {
		t.Error("SandboxCgroupOnly = true, want false")
	}
}

func TestRestoreMissingCgroup(t *testing.T) {
	st := State{
		Path:              "/vmsandbox/definitely-not-there-xyz",
		SandboxCgroupOnly: true,
	}
	_, err := RestoreCgroupsResource("definitely-not-there-xyz", st)
	if err == nil {
		t.Fatal("expected error restoring a vanished cgroup")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestParentPath(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"/vmsandbox/test/sandbox", "/vmsandbox/test"},
		{"/vmsandbox", "/"},
		{"/", "/"},
	}
	for _, tc := range tests {
		if got := parentPath(tc.in); got != tc.out {
			t.Errorf("parentPath(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
