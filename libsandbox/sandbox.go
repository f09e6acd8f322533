// Package libsandbox creates and manages VM sandboxes on the host side:
// the cgroup tree constraining a guest, the VMM process living in it, and
// the state blob that survives runtime restarts.
package libsandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs/validate"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/hypervisor"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/resource"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/utils"
)

const stateFilename = "state.json"

var (
	ErrExist     = errors.New("sandbox with given ID already exists")
	ErrNotExist  = errors.New("sandbox does not exist")
	ErrInvalidID = errors.New("invalid sandbox ID format")

	idRegex = regexp.MustCompile(`^[\w+\-\.]+$`)
)

// Sandbox is one VM sandbox: its cgroup resource controller, the VMM
// process (once started), and the on-disk state under <root>/<id>.
type Sandbox struct {
	id       string
	stateDir string
	config   *configs.Config

	m        sync.Mutex
	resource *resource.CgroupsResource
	vmm      hypervisor.Hypervisor
	created  time.Time
}

type stateData struct {
	ID      string         `json:"id"`
	Created time.Time      `json:"created"`
	VMMPid  int            `json:"vmm_pid,omitempty"`
	Cgroup  resource.State `json:"cgroup"`
	Labels  []string       `json:"labels,omitempty"`
}

// Create builds the sandbox's cgroups and records its state on disk. The
// cgroups are created before any VMM starts so the guest is constrained
// from its first instruction.
func Create(root, id string, config *configs.Config) (*Sandbox, error) {
	if root == "" {
		return nil, errors.New("root not set")
	}
	if err := validateID(id); err != nil {
		return nil, err
	}
	if err := validate.Validate(config); err != nil {
		return nil, err
	}

	stateDir := filepath.Join(root, id)
	if _, err := os.Stat(stateDir); err == nil {
		return nil, ErrExist
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cgCfg := resource.NewCgroupConfig(id, cgroupPathOf(config.Cgroups),
		config.SandboxCgroupOnly, config.Cgroups.Systemd)
	res, err := resource.NewCgroupsResource(id, cgCfg)
	if err != nil {
		return nil, err
	}

	s := &Sandbox{
		id:       id,
		stateDir: stateDir,
		config:   config,
		resource: res,
		created:  time.Now().UTC(),
	}

	// The bundle's own resources are the first registered contribution.
	// With systemd management the kernel push is deferred until the
	// transient unit exists; either way the limits are never dropped.
	if config.Cgroups.Resources != nil {
		if err := res.Update(context.Background(), id, config.Cgroups.Resources, resource.AddContainer, nil); err != nil {
			_ = res.Delete()
			return nil, err
		}
	}

	if err := os.MkdirAll(stateDir, 0o711); err != nil {
		_ = res.Delete()
		return nil, err
	}
	if err := s.saveState(0); err != nil {
		_ = res.Delete()
		_ = os.RemoveAll(stateDir)
		return nil, err
	}
	return s, nil
}

// Load rebuilds a Sandbox from its on-disk state after a runtime restart.
// It fails if the recorded cgroups no longer exist on the host.
func Load(root, id string) (*Sandbox, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	stateDir := filepath.Join(root, id)
	f, err := os.Open(filepath.Join(stateDir, stateFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("sandbox %s: %w", id, ErrNotExist)
		}
		return nil, err
	}
	defer f.Close()

	var st stateData
	if err := json.NewDecoder(f).Decode(&st); err != nil {
		return nil, fmt.Errorf("parse state of sandbox %s: %w", id, err)
	}

	res, err := resource.RestoreCgroupsResource(id, st.Cgroup)
	if err != nil {
		return nil, err
	}

	s := &Sandbox{
		id:       id,
		stateDir: stateDir,
		resource: res,
		created:  st.Created,
	}
	if st.VMMPid > 0 {
		// Only trust the saved pid if the process is still alive.
		if err := unix.Kill(st.VMMPid, 0); err == nil {
			s.vmm = &restoredVMM{pid: st.VMMPid}
		}
	}
	return s, nil
}

func (s *Sandbox) ID() string {
	return s.id
}

// StartVM launches the VMM binary, attaches it to the sandbox's cgroups
// before it signals readiness, and then moves the vcpu threads into the
// sandbox cgroup.
func (s *Sandbox) StartVM(ctx context.Context, vmmPath string, vmmArgs []string) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.vmm != nil {
		return errors.New("vm already started")
	}

	p, err := newVMMProcess(vmmPath, vmmArgs, os.Stdout, os.Stderr)
	if err != nil {
		return err
	}
	if err := p.start(s.resource.AttachVMM); err != nil {
		return err
	}
	if err := s.resource.SetupAfterStartVM(ctx, p); err != nil {
		return err
	}
	s.vmm = p
	return s.saveState(p.Pid())
}

// UpdateContainer records a container's resource change and propagates the
// recomputed sandbox aggregate to the kernel and the guest.
func (s *Sandbox) UpdateContainer(ctx context.Context, containerID string, r *configs.Resources, op resource.ResourceUpdateOp) error {
	s.m.Lock()
	defer s.m.Unlock()
	return s.resource.Update(ctx, containerID, r, op, s.vmm)
}

// Delete removes the sandbox's cgroups and its state directory. Safe to
// call more than once and against a sandbox that crashed mid-setup.
func (s *Sandbox) Delete() error {
	s.m.Lock()
	defer s.m.Unlock()
	if err := s.resource.Delete(); err != nil {
		return err
	}
	if err := os.RemoveAll(s.stateDir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Sandbox) saveState(vmmPid int) error {
	st := &stateData{
		ID:      s.id,
		Created: s.created,
		VMMPid:  vmmPid,
		Cgroup:  s.resource.Save(),
	}
	if s.config != nil {
		st.Labels = s.config.Labels
	}

	tmp, err := os.CreateTemp(s.stateDir, "state-")
	if err != nil {
		return err
	}
	err = utils.WriteJSON(tmp, st)
	if err1 := tmp.Close(); err == nil {
		err = err1
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(s.stateDir, stateFilename))
}

// cgroupPathOf flattens a cgroup config back into the single-path form the
// resource layer persists.
func cgroupPathOf(cg *configs.Cgroup) string {
	if cg == nil {
		return ""
	}
	if cg.Systemd {
		if cg.Name == "" {
			return ""
		}
		return cg.Parent + ":" + cg.ScopePrefix + ":" + cg.Name
	}
	if cg.Path != "" {
		return cg.Path
	}
	if cg.Name != "" {
		return filepath.Join(cg.Parent, cg.Name)
	}
	return ""
}

func validateID(id string) error {
	if !idRegex.MatchString(id) {
		return ErrInvalidID
	}
	// "." and ".." match the regexp but would escape the state root.
	if id == "." || id == ".." {
		return ErrInvalidID
	}
	return nil
}
