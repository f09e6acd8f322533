package validate

import (
	"strings"
	"testing"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *configs.Config
		wantErr bool
	}{
		{
			name:   "path only",
			config: &configs.Config{Cgroups: &configs.Cgroup{Path: "/vmsandbox/test"}},
		},
		{
			name:   "name and parent",
			config: &configs.Config{Cgroups: &configs.Cgroup{Name: "test", Parent: "/vmsandbox"}},
		},
		{
			name:    "no cgroup config",
			config:  &configs.Config{},
			wantErr: true,
		},
		{
			name: "path and name both set",
			config: &configs.Config{
				Cgroups: &configs.Cgroup{Path: "/vmsandbox/test", Name: "test"},
			},
			wantErr: true,
		},
		{
			name:    "path escapes upward",
			config:  &configs.Config{Cgroups: &configs.Cgroup{Path: "/vmsandbox/../etc"}},
			wantErr: true,
		},
		{
			name:    "unclean path",
			config:  &configs.Config{Cgroups: &configs.Cgroup{Path: "/vmsandbox//test/"}},
			wantErr: true,
		},
		{
			name: "systemd name with separator",
			config: &configs.Config{
				Cgroups: &configs.Cgroup{Systemd: true, Name: "a/b", Parent: "system.slice"},
			},
			wantErr: true,
		},
		{
			name: "hostname too long",
			config: &configs.Config{
				Hostname: strings.Repeat("a", 65),
				Cgroups:  &configs.Cgroup{Path: "/vmsandbox/test"},
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.config)
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
