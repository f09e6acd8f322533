package libsandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/hypervisor"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/utils"
)

type filePair struct {
	parent *os.File
	child  *os.File
}

// vmmProcess supervises one VMM child process. The child inherits the
// child end of a socket pair and writes a single byte to it once its
// control plane is up; resize requests travel over the same socket later.
type vmmProcess struct {
	cmd             *exec.Cmd
	messageSockPair filePair
}

var _ hypervisor.Hypervisor = (*vmmProcess)(nil)

func newVMMProcess(path string, args []string, stdout, stderr io.Writer) (*vmmProcess, error) {
	parent, child, err := utils.NewSockPair("vmm")
	if err != nil {
		return nil, fmt.Errorf("unable to create vmm socket pair: %w", err)
	}
	cmd := exec.Command(path, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.ExtraFiles = []*os.File{child}
	cmd.Env = append(os.Environ(),
		// ExtraFiles are placed right after stderr.
		"VMM_READY_FD=3",
	)
	return &vmmProcess{
		cmd:             cmd,
		messageSockPair: filePair{parent, child},
	}, nil
}

// start launches the VMM and calls attach with its pid before waiting for
// the readiness byte, so the process is constrained from its first
// scheduled instruction onwards.
func (p *vmmProcess) start(attach func(pid int) error) error {
	err := p.cmd.Start()
	_ = p.messageSockPair.child.Close()
	if err != nil {
		return fmt.Errorf("unable to start vmm: %w", err)
	}
	waitReady := readyWaiter(p.messageSockPair.parent)

	if err := attach(p.Pid()); err != nil {
		_ = p.cmd.Process.Kill()
		_, _ = p.cmd.Process.Wait()
		return fmt.Errorf("unable to apply cgroup configuration: %w", err)
	}

	if err := <-waitReady; err != nil {
		_ = p.cmd.Process.Kill()
		_, _ = p.cmd.Process.Wait()
		return err
	}
	return nil
}

func readyWaiter(r io.Reader) chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)

		ready := make([]byte, 1)
		_, err := r.Read(ready)
		if err == nil {
			ch <- nil
			return
		}
		ch <- fmt.Errorf("waiting for vmm readiness: %w", err)
	}()
	return ch
}

func (p *vmmProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *vmmProcess) ThreadIDs(_ context.Context) (hypervisor.VcpuThreadIDs, error) {
	return hypervisor.ScanVcpuThreads(p.Pid())
}

type resizeRequest struct {
	Vcpus    uint32 `json:"vcpus,omitempty"`
	MemoryMB uint32 `json:"memory_mb,omitempty"`
}

func (p *vmmProcess) AdjustResources(ctx context.Context, vcpus, memoryMB uint32) error {
	if vcpus == 0 && memoryMB == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = p.messageSockPair.parent.SetWriteDeadline(deadline)
		defer p.messageSockPair.parent.SetWriteDeadline(time.Time{}) //nolint:errcheck
	}
	if err := utils.WriteJSON(p.messageSockPair.parent, &resizeRequest{Vcpus: vcpus, MemoryMB: memoryMB}); err != nil {
		return fmt.Errorf("send resize request to vmm: %w", err)
	}
	return nil
}

// restoredVMM stands in for a vmmProcess after a runtime restart: the
// process is still there but the control socket is not. Thread ids can be
// re-read from /proc; resize requests can only be logged and dropped.
type restoredVMM struct {
	pid int
}

var _ hypervisor.Hypervisor = (*restoredVMM)(nil)

func (r *restoredVMM) Pid() int { return r.pid }

func (r *restoredVMM) ThreadIDs(_ context.Context) (hypervisor.VcpuThreadIDs, error) {
	return hypervisor.ScanVcpuThreads(r.pid)
}

func (r *restoredVMM) AdjustResources(_ context.Context, vcpus, memoryMB uint32) error {
	return fmt.Errorf("cannot resize vmm %d: control connection lost across restart", r.pid)
}
