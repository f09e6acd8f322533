// Package hypervisor abstracts the virtual machine monitor hosting a
// sandbox's guest, exposing just what the resource subsystem needs: the
// VMM pid, the host threads backing vcpus, and a hot-resize hook.
package hypervisor

import "context"

// VcpuThreadIDs maps vcpu indexes to the host thread ids backing them.
type VcpuThreadIDs struct {
	Vcpus map[int]int
}

type Hypervisor interface {
	// Pid returns the host pid of the VMM process.
	Pid() int

	// ThreadIDs returns the host thread ids backing the guest's vcpus.
	// Only valid once the VM has been started.
	ThreadIDs(ctx context.Context) (VcpuThreadIDs, error)

	// AdjustResources hot-adjusts the guest to the given vcpu count and
	// memory size in MiB. A zero value leaves the corresponding knob
	// untouched.
	AdjustResources(ctx context.Context, vcpus uint32, memoryMB uint32) error
}
