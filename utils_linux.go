package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencontainers/runc/libcontainer/userns"
	"github.com/opencontainers/runtime-spec/specs-go"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/kata-containers/kata-containers-sub058/libsandbox"
)

var errEmptyID = errors.New("sandbox id cannot be empty")

func logrusToStderr() bool {
	l, ok := logrus.StandardLogger().Out.(*os.File)
	return ok && l.Fd() == os.Stderr.Fd()
}

// fatal prints the error's details then exits the program with an exit
// status of 1.
func fatal(err error) {
	fatalWithCode(err, 1)
}

func fatalWithCode(err error, ret int) {
	// Make sure the error is written to the logger.
	logrus.Error(err)
	if !logrusToStderr() {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(ret)
}

// shouldHonorXDGRuntimeDir returns whether XDG_RUNTIME_DIR should be honored.
func shouldHonorXDGRuntimeDir() bool {
	if os.Geteuid() != 0 {
		return true
	}
	if !userns.RunningInUserNS() {
		// euid == 0 , in the initial ns (i.e. the real root).
		// In this case we should use the default root and ignore
		// XDG_RUNTIME_DIR (e.g. /run/user/0) for backward compatibility.
		return false
	}
	// euid = 0, in a userns.
	u, ok := os.LookupEnv("USER")
	return !ok || u != "root"
}

// reviseRootDir convert root to absolute path
func reviseRootDir(context *cli.Context) error {
	if !context.IsSet("root") {
		return nil
	}
	root, err := filepath.Abs(context.GlobalString("root"))
	if err != nil {
		return err
	}
	if root == "/" {
		// This can happen if --root argument is
		//  - "" (i.e. empty);
		//  - "." (and the CWD is /);
		//  - "../../.." (enough to get to /);
		//  - "/" (the actual /).
		return errors.New("option --root argument should not be set to /")
	}

	return context.GlobalSet("root", root)
}

// checkArgs checks the number of positional arguments a command got.
func checkArgs(context *cli.Context, expected int) error {
	if got := context.NArg(); got != expected {
		if err := cli.ShowCommandHelp(context, context.Command.Name); err != nil {
			return err
		}
		return fmt.Errorf("%s: %q requires exactly %d argument(s)", os.Args[0], context.Command.Name, expected)
	}
	return nil
}

// setupSpec performs initial setup based on the cli.Context for the sandbox:
// it chdirs into the bundle and loads the OCI spec from it.
func setupSpec(context *cli.Context) (*specs.Spec, error) {
	bundle := context.String("bundle")
	if bundle != "" {
		if err := os.Chdir(bundle); err != nil {
			return nil, err
		}
	}
	f, err := os.Open(specConfig)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s not found in bundle directory", specConfig)
		}
		return nil, err
	}
	defer f.Close()

	var spec specs.Spec
	if err := json.NewDecoder(f).Decode(&spec); err != nil {
		return nil, fmt.Errorf("parse %s: %w", specConfig, err)
	}
	return &spec, nil
}

func getSandbox(context *cli.Context) (*libsandbox.Sandbox, error) {
	id := context.Args().First()
	if id == "" {
		return nil, errEmptyID
	}
	return libsandbox.Load(context.GlobalString("root"), id)
}
