package systemd

import (
	"os"
	"testing"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func TestIsRunningSystemd(t *testing.T) {
	if _, err := os.Stat("/run/systemd/system"); err != nil {
		t.Skip("test requires systemd")
	}
	if !IsRunningSystemd() {
		t.Error("expected IsRunningSystemd to be true on a systemd host")
	}
}

func TestSystemdVersionAtoi(t *testing.T) {
	tests := []struct {
		in      string
		out     int
		wantErr bool
	}{
		{in: "12", out: 12},
		{in: "242", out: 242},
		{in: "232.25", out: 232},
		{in: "245.4-4ubuntu3", out: 245},
		{in: "245.4-4ubuntu3.11", out: 245},
		{in: "242-rc1", out: 242},
		{in: `"v246.6"`, out: 246},
		{in: "v250", out: 250},
		{in: "", wantErr: true},
		{in: "glib 2.76", wantErr: true},
	}
	for _, tc := range tests {
		got, err := systemdVersionAtoi(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("systemdVersionAtoi(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.out {
			t.Errorf("systemdVersionAtoi(%q) = %d, want %d", tc.in, got, tc.out)
		}
	}
}

func TestGetUnitName(t *testing.T) {
	tests := []struct {
		cg   *configs.Cgroup
		want string
	}{
		{&configs.Cgroup{ScopePrefix: "vmsandbox", Name: "abc"}, "vmsandbox-abc.scope"},
		{&configs.Cgroup{ScopePrefix: "vmsandbox", Name: "test.slice"}, "test.slice"},
	}
	for _, tc := range tests {
		if got := getUnitName(tc.cg); got != tc.want {
			t.Errorf("getUnitName(%+v) = %q, want %q", tc.cg, got, tc.want)
		}
	}
}

func TestExpandSlice(t *testing.T) {
	tests := []struct {
		in      string
		out     string
		wantErr bool
	}{
		{in: "test.slice", out: "/test.slice"},
		{in: "test-a.slice", out: "/test.slice/test-a.slice"},
		{in: "test-a-b.slice", out: "/test.slice/test-a.slice/test-a-b.slice"},
		{in: "-.slice", out: "/"},
		{in: "test", wantErr: true},
		{in: ".slice", wantErr: true},
		{in: "test--a.slice", wantErr: true},
		{in: "-test.slice", wantErr: true},
		{in: "foo/bar.slice", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ExpandSlice(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ExpandSlice(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if err == nil && got != tc.out {
			t.Errorf("ExpandSlice(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}
