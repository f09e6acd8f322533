package fs

import (
	"strconv"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

type PidsGroup struct{}

func (s *PidsGroup) Name() string {
	return "pids"
}

func (s *PidsGroup) Apply(path string, _ *configs.Resources, pid int) error {
	return apply(path, pid)
}

func (s *PidsGroup) Set(path string, r *configs.Resources) error {
	if r.PidsLimit == 0 {
		return nil
	}
	// "max" is the fallback value.
	limit := "max"
	if r.PidsLimit > 0 {
		limit = strconv.FormatInt(r.PidsLimit, 10)
	}
	return cgroups.WriteFile(path, "pids.max", limit)
}
