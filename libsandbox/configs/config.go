package configs

// Config defines configuration options for one VM sandbox on the host side.
type Config struct {
	// Hostname optionally sets the guest's hostname if provided
	Hostname string `json:"hostname"`

	// Cgroups specifies the cgroup settings of the sandbox cgroup, the
	// one constraining the guest VM itself.
	Cgroups *Cgroup `json:"cgroups"`

	// SandboxCgroupOnly puts every host-side process into the sandbox
	// cgroup. When false, non-guest processes (VMM housekeeping, I/O
	// threads) get their own overhead cgroup next to the sandbox one.
	SandboxCgroupOnly bool `json:"sandbox_cgroup_only"`

	// Labels are user defined metadata that is stored in the config and
	// populated on the state
	Labels []string `json:"labels"`
}
