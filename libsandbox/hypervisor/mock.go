package hypervisor

import "context"

// AdjustCall records one AdjustResources invocation on a Mock.
type AdjustCall struct {
	Vcpus    uint32
	MemoryMB uint32
}

// Mock is a Hypervisor backed by canned data, for tests.
type Mock struct {
	MockPid     int
	Threads     VcpuThreadIDs
	ThreadsErr  error
	AdjustErr   error
	AdjustCalls []AdjustCall
}

func (m *Mock) Pid() int { return m.MockPid }

func (m *Mock) ThreadIDs(_ context.Context) (VcpuThreadIDs, error) {
	return m.Threads, m.ThreadsErr
}

func (m *Mock) AdjustResources(_ context.Context, vcpus, memoryMB uint32) error {
	m.AdjustCalls = append(m.AdjustCalls, AdjustCall{Vcpus: vcpus, MemoryMB: memoryMB})
	return m.AdjustErr
}
