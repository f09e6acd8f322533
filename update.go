package main

import (
	gocontext "context"
	"errors"
	"fmt"
	"strconv"

	units "github.com/docker/go-units"
	"github.com/urfave/cli"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/resource"
)

var updateCommand = cli.Command{
	Name:      "update",
	Usage:     "update one container's resource contribution inside a running sandbox",
	ArgsUsage: `<sandbox-id> <container-id>`,
	Description: `The update command registers, changes or removes the resource limits one
container contributes to its sandbox. The sandbox-level aggregate is then
recomputed, written to the sandbox cgroup and pushed to the guest so vcpu
and memory sizing never diverge from the cgroup limits.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "add",
			Usage: "register the container instead of updating an existing entry",
		},
		cli.BoolFlag{
			Name:  "remove",
			Usage: "remove the container's contribution",
		},
		cli.StringFlag{
			Name:  "memory",
			Usage: "memory limit (in bytes, or with unit suffix like 512m)",
		},
		cli.StringFlag{
			Name:  "memory-swap",
			Usage: "total memory plus swap limit (in bytes, or with unit suffix)",
		},
		cli.StringFlag{
			Name:  "cpu-period",
			Usage: "CPU CFS period to be used for hardcapping (in usecs)",
		},
		cli.StringFlag{
			Name:  "cpu-quota",
			Usage: "CPU CFS hardcap limit (in usecs); allowed cpu time in a given period",
		},
		cli.StringFlag{
			Name:  "cpu-share",
			Usage: "CPU shares (relative weight vs. other sandboxes)",
		},
		cli.Int64Flag{
			Name:  "pids-limit",
			Usage: "maximum number of tasks the container may spawn (-1 for unlimited)",
		},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 2); err != nil {
			return err
		}
		s, err := getSandbox(context)
		if err != nil {
			return err
		}
		containerID := context.Args().Get(1)
		if containerID == "" {
			return errors.New("container id cannot be empty")
		}

		if context.Bool("remove") {
			return s.UpdateContainer(gocontext.Background(), containerID, nil, resource.DelContainer)
		}

		r := &configs.Resources{
			PidsLimit: context.Int64("pids-limit"),
		}
		for _, pair := range []struct {
			name string
			dest *int64
		}{
			{"memory", &r.Memory},
			{"memory-swap", &r.MemorySwap},
		} {
			if val := context.String(pair.name); val != "" {
				v, err := units.RAMInBytes(val)
				if err != nil {
					return fmt.Errorf("invalid value for %s: %w: %q", pair.name, cgroups.ErrInvalidBytesSize, val)
				}
				*pair.dest = v
			}
		}
		if val := context.String("cpu-period"); val != "" {
			if r.CpuPeriod, err = strconv.ParseUint(val, 10, 64); err != nil {
				return fmt.Errorf("invalid value for cpu-period: %w", err)
			}
		}
		if val := context.String("cpu-quota"); val != "" {
			if r.CpuQuota, err = strconv.ParseInt(val, 10, 64); err != nil {
				return fmt.Errorf("invalid value for cpu-quota: %w", err)
			}
		}
		if val := context.String("cpu-share"); val != "" {
			if r.CpuShares, err = strconv.ParseUint(val, 10, 64); err != nil {
				return fmt.Errorf("invalid value for cpu-share: %w", err)
			}
		}

		op := resource.UpdateContainer
		if context.Bool("add") {
			op = resource.AddContainer
		}
		return s.UpdateContainer(gocontext.Background(), containerID, r, op)
	},
}
