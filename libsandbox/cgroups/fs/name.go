package fs

import "github.com/kata-containers/kata-containers-sub058/libsandbox/configs"

type NameGroup struct {
	GroupName string
	Join      bool
}

func (s *NameGroup) Name() string {
	return s.GroupName
}

func (s *NameGroup) Apply(path string, _ *configs.Resources, pid int) error {
	if s.Join {
		// Ignore errors if the named cgroup does not exist.
		_ = apply(path, pid)
	}
	return nil
}

func (s *NameGroup) Set(_ string, _ *configs.Resources) error {
	return nil
}
