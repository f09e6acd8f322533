// Package specconv converts an OCI runtime spec into the runtime's own
// sandbox configuration types.
package specconv

import (
	"errors"
	"fmt"
	"os"
	"strings"

	systemdDbus "github.com/coreos/go-systemd/v22/dbus"
	dbus "github.com/godbus/dbus/v5"
	"github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/utils"
)

type CreateOpts struct {
	CgroupName       string
	Spec             *specs.Spec
	UseSystemdCgroup bool
	RootlessCgroups  bool
}

// getwd is a wrapper similar to os.Getwd, except it always gets
// the value from the kernel, which guarantees the returned value
// to be absolute and clean.
func getwd() (wd string, err error) {
	for {
		wd, err = unix.Getwd()
		//nolint:errorlint // unix errors are bare
		if err != unix.EINTR {
			break
		}
	}
	return wd, os.NewSyscallError("getwd", err)
}

// CreateSandboxConfig creates a new sandbox configuration from a given
// specification and a cgroup name.
func CreateSandboxConfig(opts *CreateOpts) (*configs.Config, error) {
	// The runtime's cwd will always be the bundle path.
	cwd, err := getwd()
	if err != nil {
		return nil, err
	}
	spec := opts.Spec
	if spec == nil {
		return nil, errors.New("spec must be specified")
	}

	labels := []string{}
	for k, v := range spec.Annotations {
		labels = append(labels, k+"="+v)
	}
	config := &configs.Config{
		Hostname: spec.Hostname,
		Labels:   append(labels, "bundle="+cwd),
	}

	config.Cgroups, err = CreateCgroupConfig(opts)
	if err != nil {
		return nil, err
	}
	return config, nil
}

// CreateCgroupConfig maps the spec's cgroupsPath and LinuxResources into
// the runtime's cgroup config. The resources themselves are copied over
// verbatim; unit remapping happens much later, at write time, once the
// hierarchy is known.
func CreateCgroupConfig(opts *CreateOpts) (*configs.Cgroup, error) {
	var myCgroupPath string

	c := &configs.Cgroup{
		Systemd:   opts.UseSystemdCgroup,
		Rootless:  opts.RootlessCgroups,
		Resources: &configs.Resources{},
	}

	spec := opts.Spec
	if spec.Linux != nil && spec.Linux.CgroupsPath != "" {
		if opts.UseSystemdCgroup {
			// The "slice:prefix:name" form is not a filesystem path.
			myCgroupPath = spec.Linux.CgroupsPath
		} else {
			myCgroupPath = utils.CleanPath(spec.Linux.CgroupsPath)
		}
	}

	if opts.UseSystemdCgroup {
		sp, err := initSystemdProps(spec)
		if err != nil {
			return nil, err
		}
		c.SystemdProps = sp

		if myCgroupPath == "" {
			// Default for compatibility with the non-systemd layout.
			c.Parent = "system.slice"
			c.ScopePrefix = "vmsandbox"
			c.Name = opts.CgroupName
		} else {
			// Parse the path from expected "slice:prefix:name" format,
			// and the parts are sanity-checked by the systemd managers.
			parts := strings.Split(myCgroupPath, ":")
			if len(parts) != 3 {
				return nil, fmt.Errorf("expected cgroupsPath to be of format \"slice:prefix:name\" for systemd cgroups, got %q instead", myCgroupPath)
			}
			c.Parent = parts[0]
			c.ScopePrefix = parts[1]
			c.Name = parts[2]
		}
	} else {
		if myCgroupPath == "" {
			c.Name = opts.CgroupName
			c.Parent = "/vmsandbox"
		} else {
			c.Path = myCgroupPath
		}
	}

	if spec.Linux == nil || spec.Linux.Resources == nil {
		return c, nil
	}
	r := spec.Linux.Resources

	if r.CPU != nil {
		if r.CPU.Shares != nil {
			c.Resources.CpuShares = *r.CPU.Shares
		}
		if r.CPU.Quota != nil {
			c.Resources.CpuQuota = *r.CPU.Quota
		}
		if r.CPU.Period != nil {
			c.Resources.CpuPeriod = *r.CPU.Period
		}
		c.Resources.CpusetCpus = r.CPU.Cpus
		c.Resources.CpusetMems = r.CPU.Mems
	}
	if r.Memory != nil {
		if r.Memory.Limit != nil {
			c.Resources.Memory = *r.Memory.Limit
		}
		if r.Memory.Reservation != nil {
			c.Resources.MemoryReservation = *r.Memory.Reservation
		}
		if r.Memory.Swap != nil {
			c.Resources.MemorySwap = *r.Memory.Swap
		}
		if r.Memory.Swappiness != nil {
			c.Resources.MemorySwappiness = r.Memory.Swappiness
		}
	}
	if r.Pids != nil {
		c.Resources.PidsLimit = r.Pids.Limit
	}
	if r.BlockIO != nil {
		if r.BlockIO.Weight != nil {
			c.Resources.BlkioWeight = *r.BlockIO.Weight
		}
		if r.BlockIO.LeafWeight != nil {
			c.Resources.BlkioLeafWeight = *r.BlockIO.LeafWeight
		}
		for _, wd := range r.BlockIO.WeightDevice {
			var weight, leafWeight uint16
			if wd.Weight != nil {
				weight = *wd.Weight
			}
			if wd.LeafWeight != nil {
				leafWeight = *wd.LeafWeight
			}
			weightDevice := configs.NewWeightDevice(wd.Major, wd.Minor, weight, leafWeight)
			c.Resources.BlkioWeightDevice = append(c.Resources.BlkioWeightDevice, weightDevice)
		}
		for _, td := range r.BlockIO.ThrottleReadBpsDevice {
			rate := td.Rate
			throttleDevice := configs.NewThrottleDevice(td.Major, td.Minor, rate)
			c.Resources.BlkioThrottleReadBpsDevice = append(c.Resources.BlkioThrottleReadBpsDevice, throttleDevice)
		}
		for _, td := range r.BlockIO.ThrottleWriteBpsDevice {
			rate := td.Rate
			throttleDevice := configs.NewThrottleDevice(td.Major, td.Minor, rate)
			c.Resources.BlkioThrottleWriteBpsDevice = append(c.Resources.BlkioThrottleWriteBpsDevice, throttleDevice)
		}
		for _, td := range r.BlockIO.ThrottleReadIOPSDevice {
			rate := td.Rate
			throttleDevice := configs.NewThrottleDevice(td.Major, td.Minor, rate)
			c.Resources.BlkioThrottleReadIOPSDevice = append(c.Resources.BlkioThrottleReadIOPSDevice, throttleDevice)
		}
		for _, td := range r.BlockIO.ThrottleWriteIOPSDevice {
			rate := td.Rate
			throttleDevice := configs.NewThrottleDevice(td.Major, td.Minor, rate)
			c.Resources.BlkioThrottleWriteIOPSDevice = append(c.Resources.BlkioThrottleWriteIOPSDevice, throttleDevice)
		}
	}
	for _, l := range r.HugepageLimits {
		c.Resources.HugetlbLimit = append(c.Resources.HugetlbLimit, &configs.HugepageLimit{
			Pagesize: l.Pagesize,
			Limit:    l.Limit,
		})
	}
	if len(r.Unified) > 0 {
		// copy the map
		c.Resources.Unified = make(map[string]string, len(r.Unified))
		for k, v := range r.Unified {
			c.Resources.Unified[k] = v
		}
	}

	return c, nil
}

func checkPropertyName(s string) error {
	if len(s) < 3 {
		return errors.New("too short")
	}
	// Check ASCII characters rather than Unicode runes,
	// so we have to use indexes rather than range.
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch >= 'A' && ch <= 'Z') || (ch >= 'a' && ch <= 'z') {
			continue
		}
		return errors.New("contains non-alphabetic character")
	}
	return nil
}

// Convert a value of type sec to a value of type usec, as systemd
// operates in microseconds while the annotations are in seconds.
func convertSecToUSec(value dbus.Variant) (dbus.Variant, error) {
	var sec uint64
	const M = 1000000
	vi := value.Value()
	switch value.Signature().String() {
	case "y":
		sec = uint64(vi.(byte)) * M
	case "n":
		sec = uint64(vi.(int16)) * M
	case "q":
		sec = uint64(vi.(uint16)) * M
	case "i":
		sec = uint64(vi.(int32)) * M
	case "u":
		sec = uint64(vi.(uint32)) * M
	case "x":
		sec = uint64(vi.(int64)) * M
	case "t":
		sec = vi.(uint64) * M
	case "d":
		sec = uint64(vi.(float64) * M)
	default:
		return value, errors.New("not a number")
	}
	return dbus.MakeVariant(sec), nil
}

// initSystemdProps collects the org.systemd.property.* annotations into
// dbus properties to pass along to the transient unit. Names ending in
// "Sec" are converted to their "USec" counterpart, since the dbus API only
// accepts microseconds.
func initSystemdProps(spec *specs.Spec) ([]systemdDbus.Property, error) {
	const keyPrefix = "org.systemd.property."
	var sp []systemdDbus.Property

	for k, v := range spec.Annotations {
		name := strings.TrimPrefix(k, keyPrefix)
		if len(name) == len(k) { // prefix not there
			continue
		}
		if err := checkPropertyName(name); err != nil {
			return nil, fmt.Errorf("annotation %s name incorrect: %w", k, err)
		}
		value, err := dbus.ParseVariant(v, dbus.Signature{})
		if err != nil {
			return nil, fmt.Errorf("annotation %s=%s value parse error: %w", k, v, err)
		}
		// Check for Sec suffix.
		if trimName := strings.TrimSuffix(name, "Sec"); len(trimName) < len(name) {
			// Check for a lowercase ascii a-z just before Sec.
			if ch := trimName[len(trimName)-1]; ch >= 'a' && ch <= 'z' {
				// Convert from Sec to USec.
				name = trimName + "USec"
				value, err = convertSecToUSec(value)
				if err != nil {
					return nil, fmt.Errorf("annotation %s=%s value parse error: %w", k, v, err)
				}
			}
		}
		sp = append(sp, systemdDbus.Property{Name: name, Value: value})
	}

	return sp, nil
}
