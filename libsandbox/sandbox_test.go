package libsandbox

import (
	"errors"
	"testing"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func TestValidateID(t *testing.T) {
	valid := []string{"abc", "ABC-123", "a.b.c", "under_score", "with+plus", "0"}
	for _, id := range valid {
		if err := validateID(id); err != nil {
			t.Errorf("validateID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", ".", "..", "a/b", "a b", "a:b", "a*b", "../escape"}
	for _, id := range invalid {
		if err := validateID(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("validateID(%q) = %v, want ErrInvalidID", id, err)
		}
	}
}

func TestCgroupPathOf(t *testing.T) {
	tests := []struct {
		cg   *configs.Cgroup
		want string
	}{
		{cg: nil, want: ""},
		{cg: &configs.Cgroup{}, want: ""},
		{cg: &configs.Cgroup{Path: "/vmsandbox/test"}, want: "/vmsandbox/test"},
		{cg: &configs.Cgroup{Name: "test", Parent: "/vmsandbox"}, want: "/vmsandbox/test"},
		{
			cg:   &configs.Cgroup{Systemd: true, Parent: "system.slice", ScopePrefix: "vmsandbox", Name: "test"},
			want: "system.slice:vmsandbox:test",
		},
		{cg: &configs.Cgroup{Systemd: true}, want: ""},
	}
	for _, tc := range tests {
		if got := cgroupPathOf(tc.cg); got != tc.want {
			t.Errorf("cgroupPathOf(%+v) = %q, want %q", tc.cg, got, tc.want)
		}
	}
}

func TestLoadMissingSandbox(t *testing.T) {
	if _, err := Load(t.TempDir(), "no-such-sandbox"); !errors.Is(err, ErrNotExist) {
		t.Errorf("Load of missing sandbox = %v, want ErrNotExist", err)
	}
}

func TestCreateBadID(t *testing.T) {
	cfg := &configs.Config{Cgroups: &configs.Cgroup{Path: "/vmsandbox/x"}}
	if _, err := Create(t.TempDir(), "../escape", cfg); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Create with bad id = %v, want ErrInvalidID", err)
	}
}
