package main

import (
	gocontext "context"

	"github.com/urfave/cli"

	"github.com/kata-containers/kata-containers-sub058/libsandbox"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/specconv"
)

var createCommand = cli.Command{
	Name:      "create",
	Usage:     "create a sandbox's cgroup tree and optionally launch its VMM into it",
	ArgsUsage: `<sandbox-id>

Where "<sandbox-id>" is your name for the instance of the sandbox that you
are creating. The name you provide for the sandbox instance must be unique
on your host.`,
	Description: `The create command creates the cgroups constraining a VM sandbox from the
resources section of "` + specConfig + `" in the bundle. When --vmm is given, the
VMM is started into those cgroups right away and its vcpu threads are moved
into the sandbox cgroup once the VM reports readiness.`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "bundle, b",
			Value: "",
			Usage: `path to the root of the bundle directory, defaults to the current directory`,
		},
		cli.StringFlag{
			Name:  "vmm",
			Usage: "path to the VMM binary to launch into the sandbox cgroup",
		},
		cli.StringSliceFlag{
			Name:  "vmm-arg",
			Usage: "additional argument passed to the VMM (can be repeated)",
		},
		cli.BoolFlag{
			Name:  "sandbox-cgroup-only",
			Usage: "keep every host-side process in the sandbox cgroup instead of splitting off an overhead cgroup",
		},
	},
	Action: func(context *cli.Context) error {
		if err := checkArgs(context, 1); err != nil {
			return err
		}
		id := context.Args().First()
		if id == "" {
			return errEmptyID
		}
		spec, err := setupSpec(context)
		if err != nil {
			return err
		}
		config, err := specconv.CreateSandboxConfig(&specconv.CreateOpts{
			CgroupName:       id,
			Spec:             spec,
			UseSystemdCgroup: context.GlobalBool("systemd-cgroup"),
			RootlessCgroups:  context.GlobalBool("rootless"),
		})
		if err != nil {
			return err
		}
		config.SandboxCgroupOnly = context.Bool("sandbox-cgroup-only")

		s, err := libsandbox.Create(context.GlobalString("root"), id, config)
		if err != nil {
			return err
		}
		if vmm := context.String("vmm"); vmm != "" {
			if err := s.StartVM(gocontext.Background(), vmm, context.StringSlice("vmm-arg")); err != nil {
				_ = s.Delete()
				return err
			}
		}
		return nil
	},
}
