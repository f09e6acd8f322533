package main

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/urfave/cli"

	"github.com/kata-containers/kata-containers-sub058/libsandbox"
)

var deleteCommand = cli.Command{
	Name:      "delete",
	Usage:     "delete a sandbox's cgroups and any state held by it",
	ArgsUsage: `<sandbox-id>`,
	Description: `The delete command tears down the sandbox's cgroup tree, moving any
remaining tasks back to the hierarchy root first. Deleting a sandbox that
is already gone is not an error.`,
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "force, f",
			Usage: "remove the on-disk state even if the recorded cgroups no longer exist",
		},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1); err != nil {
			return err
		}
		s, err := getSandbox(context)
		if err != nil {
			if errors.Is(err, libsandbox.ErrNotExist) {
				return nil
			}
			if context.Bool("force") && errors.Is(err, os.ErrNotExist) {
				// The cgroups are gone but the state dir survived;
				// sweep it up.
				return os.RemoveAll(filepath.Join(context.GlobalString("root"), context.Args().First()))
			}
			return err
		}
		return s.Delete()
	},
}
