package specconv

import (
	"strings"
	"testing"

	dbus "github.com/godbus/dbus/v5"
	"github.com/opencontainers/runtime-spec/specs-go"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs/validate"
)

func TestGetwd(t *testing.T) {
	wd, err := getwd()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(wd, "/") {
		t.Errorf("getwd() = %q, want an absolute path", wd)
	}
}

func TestCreateSandboxConfig(t *testing.T) {
	shares := uint64(1024)
	spec := &specs.Spec{
		Hostname: "sandbox",
		Linux: &specs.Linux{
			CgroupsPath: "/vmsandbox/test",
			Resources: &specs.LinuxResources{
				CPU: &specs.LinuxCPU{Shares: &shares},
			},
		},
	}
	opts := &CreateOpts{CgroupName: "test", Spec: spec}

	config, err := CreateSandboxConfig(opts)
	if err != nil {
		t.Fatal(err)
	}
	if err := validate.Validate(config); err != nil {
		t.Errorf("generated config does not validate: %v", err)
	}
	if config.Cgroups.Path != "/vmsandbox/test" {
		t.Errorf("cgroup path = %q, want /vmsandbox/test", config.Cgroups.Path)
	}
	if config.Cgroups.Resources.CpuShares != 1024 {
		t.Errorf("CpuShares = %d, want 1024", config.Cgroups.Resources.CpuShares)
	}
	found := false
	for _, l := range config.Labels {
		if strings.HasPrefix(l, "bundle=/") {
			found = true
		}
	}
	if !found {
		t.Error("expected a bundle= label with an absolute path")
	}
}

func TestCreateSandboxConfigNoSpec(t *testing.T) {
	if _, err := CreateSandboxConfig(&CreateOpts{CgroupName: "test"}); err == nil {
		t.Error("expected error for nil spec")
	}
}

func TestCreateCgroupConfigDefaults(t *testing.T) {
	opts := &CreateOpts{CgroupName: "abc", Spec: &specs.Spec{Linux: &specs.Linux{}}}
	c, err := CreateCgroupConfig(opts)
	if err != nil {
		t.Fatal(err)
	}
	if c.Name != "abc" || c.Parent != "/vmsandbox" || c.Path != "" {
		t.Errorf("got Name=%q Parent=%q Path=%q, want abc /vmsandbox \"\"", c.Name, c.Parent, c.Path)
	}
}

func TestCreateCgroupConfigCleansPath(t *testing.T) {
	opts := &CreateOpts{
		CgroupName: "abc",
		Spec: &specs.Spec{
			Linux: &specs.Linux{CgroupsPath: "/vmsandbox//test/"},
		},
	}
	c, err := CreateCgroupConfig(opts)
	if err != nil {
		t.Fatal(err)
	}
	if c.Path != "/vmsandbox/test" {
		t.Errorf("Path = %q, want the cleaned /vmsandbox/test", c.Path)
	}
}

func TestCreateCgroupConfigSystemd(t *testing.T) {
	opts := &CreateOpts{
		CgroupName:       "abc",
		UseSystemdCgroup: true,
		Spec: &specs.Spec{
			Linux: &specs.Linux{CgroupsPath: "machine.slice:vmsandbox:abc"},
		},
	}
	c, err := CreateCgroupConfig(opts)
	if err != nil {
		t.Fatal(err)
	}
	if c.Parent != "machine.slice" || c.ScopePrefix != "vmsandbox" || c.Name != "abc" {
		t.Errorf("got Parent=%q ScopePrefix=%q Name=%q", c.Parent, c.ScopePrefix, c.Name)
	}

	opts.Spec.Linux.CgroupsPath = "/not/a/systemd/path"
	if _, err := CreateCgroupConfig(opts); err == nil {
		t.Error("expected error for non slice:prefix:name cgroupsPath")
	}

	opts.Spec.Linux.CgroupsPath = ""
	c, err = CreateCgroupConfig(opts)
	if err != nil {
		t.Fatal(err)
	}
	if c.Parent != "system.slice" || c.ScopePrefix != "vmsandbox" || c.Name != "abc" {
		t.Errorf("got Parent=%q ScopePrefix=%q Name=%q, want defaults", c.Parent, c.ScopePrefix, c.Name)
	}
}

func TestCheckPropertyName(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{in: "", valid: false},
		{in: "xx", valid: false},
		{in: "xxx", valid: true},
		{in: "someValidName", valid: true},
		{in: "some-name", valid: false},
		{in: "some_name", valid: false},
		{in: "some.name", valid: false},
		{in: "Name123", valid: false},
		{in: "прелесть", valid: false},
	}
	for _, tc := range tests {
		err := checkPropertyName(tc.in)
		if (err == nil) != tc.valid {
			t.Errorf("checkPropertyName(%q) = %v, want valid=%v", tc.in, err, tc.valid)
		}
	}
}

func TestConvertSecToUSec(t *testing.T) {
	valid := []struct {
		in   dbus.Variant
		want uint64
	}{
		{dbus.MakeVariant(byte(2)), 2000000},
		{dbus.MakeVariant(int16(3)), 3000000},
		{dbus.MakeVariant(uint16(4)), 4000000},
		{dbus.MakeVariant(int32(5)), 5000000},
		{dbus.MakeVariant(uint32(6)), 6000000},
		{dbus.MakeVariant(int64(7)), 7000000},
		{dbus.MakeVariant(uint64(8)), 8000000},
		{dbus.MakeVariant(float64(1.5)), 1500000},
	}
	for _, tc := range valid {
		out, err := convertSecToUSec(tc.in)
		if err != nil {
			t.Errorf("convertSecToUSec(%v): %v", tc.in, err)
			continue
		}
		if got := out.Value().(uint64); got != tc.want {
			t.Errorf("convertSecToUSec(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}

	if _, err := convertSecToUSec(dbus.MakeVariant("forever")); err == nil {
		t.Error("expected error for a non-numeric variant")
	}
}

func TestInitSystemdProps(t *testing.T) {
	spec := &specs.Spec{
		Annotations: map[string]string{
			"org.systemd.property.TimeoutStopSec": "3",
			"org.systemd.property.CollectMode":    "'inactive-or-failed'",
			"unrelated.annotation":                "ignored",
		},
	}
	props, err := initSystemdProps(spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(props) != 2 {
		t.Fatalf("got %d properties, want 2", len(props))
	}

	byName := map[string]dbus.Variant{}
	for _, p := range props {
		byName[p.Name] = p.Value
	}
	// The Sec suffix must be rewritten to USec, with the value scaled.
	v, ok := byName["TimeoutStopUSec"]
	if !ok {
		t.Fatal("TimeoutStopUSec property missing")
	}
	if got := v.Value().(uint64); got != 3000000 {
		t.Errorf("TimeoutStopUSec = %d, want 3000000", got)
	}
	v, ok = byName["CollectMode"]
	if !ok {
		t.Fatal("CollectMode property missing")
	}
	if got := v.Value().(string); got != "inactive-or-failed" {
		t.Errorf("CollectMode = %q, want inactive-or-failed", got)
	}
}

func TestInitSystemdPropsBadName(t *testing.T) {
	for _, name := range []string{"ab", "with.dot", "кириллица"} {
		spec := &specs.Spec{
			Annotations: map[string]string{"org.systemd.property." + name: "1"},
		}
		if _, err := initSystemdProps(spec); err == nil {
			t.Errorf("expected error for property name %q", name)
		}
	}
}
