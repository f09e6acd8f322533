package fs2

import (
	"strconv"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
)

func isPidsSet(r *configs.Resources) bool {
	return r.PidsLimit != 0
}

func setPids(dirPath string, r *configs.Resources) error {
	if !isPidsSet(r) {
		return nil
	}
	if val := numToStr(r.PidsLimit); val != "" {
		if err := cgroups.WriteFile(dirPath, "pids.max", val); err != nil {
			return err
		}
	}
	// A negative limit other than -1 makes no sense.
	if r.PidsLimit < -1 {
		return &cgroups.ParseError{
			Path: dirPath, File: "pids.max",
			Err: strconv.ErrRange,
		}
	}
	return nil
}
