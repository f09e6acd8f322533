package resource

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/cgroups/manager"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/configs"
	"github.com/kata-containers/kata-containers-sub058/libsandbox/hypervisor"
)

// ResourceUpdateOp says what happened to a container's resource
// contribution inside the shared sandbox cgroup.
type ResourceUpdateOp int

const (
	AddContainer ResourceUpdateOp = iota
	UpdateContainer
	DelContainer
)

// ErrCgroupDeleted is returned by operations invoked after Delete.
var ErrCgroupDeleted = errors.New("sandbox cgroup has been deleted")

const defaultCpuPeriod = 100000

// CgroupsResource owns the live cgroup managers of one sandbox, plus the
// per-container resource registry the sandbox aggregate is recomputed
// from. Every operation holds the lock for its entire duration: an update
// interleaving with a delete on the same sandbox would corrupt kernel
// state, so whole-operation mutual exclusion is the contract here, not
// per-field locking.
type CgroupsResource struct {
	sandboxID string
	config    CgroupConfig

	mu          sync.RWMutex
	sandboxMgr  cgroups.Manager
	overheadMgr cgroups.Manager
	// domainMgr is the per-sandbox parent domain used in threaded mode.
	// Domain controllers (memory, io, hugetlb) have no interface files in
	// a threaded child, so their limits are applied here.
	domainMgr  cgroups.Manager
	containers map[string]*configs.Resources
	// unitStarted tracks whether the systemd transient unit exists yet.
	// Resource registrations before that point are recorded and pushed to
	// the kernel once AttachVMM starts the unit.
	unitStarted bool
	deleted     bool
}

// NewCgroupsResource creates the sandbox cgroup (and the overhead cgroup,
// unless SandboxCgroupOnly) so that limits are in place before any VMM
// process is launched into them.
func NewCgroupsResource(sandboxID string, cfg CgroupConfig) (*CgroupsResource, error) {
	if cfg.Systemd && !cfg.SandboxCgroupOnly {
		// A transient unit is process-granular; it cannot host the split
		// of vcpu threads and housekeeping threads the overhead cgroup
		// needs. Pick one or the other.
		return nil, errors.New("overhead cgroup requires cgroupfs management, not systemd")
	}

	c := &CgroupsResource{
		sandboxID:  sandboxID,
		config:     cfg,
		containers: make(map[string]*configs.Resources),
	}

	sandboxCg, err := cgroupConfigFromPath(cfg.Path, cfg.Systemd, cfg.ThreadedMode)
	if err != nil {
		return nil, err
	}
	if c.sandboxMgr, err = manager.New(sandboxCg); err != nil {
		return nil, fmt.Errorf("sandbox cgroup for %s: %w", sandboxID, err)
	}

	if cfg.OverheadPath != "" {
		overheadCg, err := cgroupConfigFromPath(cfg.OverheadPath, false, cfg.ThreadedMode)
		if err != nil {
			return nil, err
		}
		if c.overheadMgr, err = manager.New(overheadCg); err != nil {
			return nil, fmt.Errorf("overhead cgroup for %s: %w", sandboxID, err)
		}
	}

	if cfg.ThreadedMode {
		domainCg, err := cgroupConfigFromPath(filepath.Dir(cfg.Path), false, false)
		if err != nil {
			return nil, err
		}
		if c.domainMgr, err = manager.New(domainCg); err != nil {
			return nil, fmt.Errorf("sandbox domain cgroup for %s: %w", sandboxID, err)
		}
	}

	// systemd refuses to start a unit with no process in it; that unit is
	// created later, once the VMM pid is known.
	if !cfg.Systemd {
		if err := c.create(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// create materializes the cgroup directories without attaching anything.
func (c *CgroupsResource) create() error {
	if c.domainMgr != nil {
		if err := c.domainMgr.Apply(-1); err != nil {
			return err
		}
	}
	if err := c.sandboxMgr.Apply(-1); err != nil {
		return err
	}
	if c.overheadMgr != nil {
		if err := c.overheadMgr.Apply(-1); err != nil {
			return err
		}
	}
	return nil
}

// cgroupConfigFromPath builds a manager config from a persisted-form path.
func cgroupConfigFromPath(path string, useSystemd, threaded bool) (*configs.Cgroup, error) {
	c := &configs.Cgroup{
		Resources:    &configs.Resources{},
		Systemd:      useSystemd,
		ThreadedMode: threaded,
	}
	if !useSystemd {
		c.Path = path
		return c, nil
	}
	parts := strings.Split(path, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected cgroup path to be of format \"slice:prefix:name\" for systemd cgroups, got %q instead", path)
	}
	c.Parent = parts[0]
	c.ScopePrefix = parts[1]
	c.Name = parts[2]
	return c, nil
}

// AttachVMM puts a freshly started VMM process into the sandbox's cgroups:
// the overhead cgroup when one is configured (its vcpu threads move to the
// sandbox cgroup later, in SetupAfterStartVM), otherwise the sandbox
// cgroup wholesale.
func (c *CgroupsResource) AttachVMM(pid int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return ErrCgroupDeleted
	}
	var err error
	if c.overheadMgr != nil {
		err = c.overheadMgr.Apply(pid)
	} else {
		err = c.sandboxMgr.Apply(pid)
	}
	if err != nil {
		return err
	}
	if !c.unitStarted {
		c.unitStarted = true
		// Flush resource registrations that were deferred because the
		// transient unit did not exist yet.
		if c.config.Systemd && len(c.containers) > 0 {
			if err := c.setAggregate(c.aggregate()); err != nil {
				return fmt.Errorf("apply deferred limits for sandbox %s: %w", c.sandboxID, err)
			}
		}
	}
	return nil
}

// Update records one container's resource contribution and pushes the
// recomputed sandbox aggregate both to the kernel and, through h, to the
// VM itself, so cgroup bookkeeping and guest sizing never diverge.
func (c *CgroupsResource) Update(ctx context.Context, containerID string, r *configs.Resources, op ResourceUpdateOp, h hypervisor.Hypervisor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return fmt.Errorf("update container %s: %w", containerID, ErrCgroupDeleted)
	}

	switch op {
	case AddContainer, UpdateContainer:
		c.containers[containerID] = r
	case DelContainer:
		delete(c.containers, containerID)
	default:
		return fmt.Errorf("resource update op %d for container %s: %w", op, containerID, cgroups.ErrInvalidOperation)
	}

	if c.config.Systemd && !c.unitStarted {
		// The transient unit does not exist yet; the registration is
		// pushed by AttachVMM once the unit starts.
		return nil
	}

	agg := c.aggregate()
	if err := c.setAggregate(agg); err != nil {
		return fmt.Errorf("update sandbox %s cgroup for container %s: %w", c.sandboxID, containerID, err)
	}

	if h == nil {
		return nil
	}
	vcpus := calcVcpus(agg)
	memMB := calcMemoryMB(agg)
	if err := h.AdjustResources(ctx, vcpus, memMB); err != nil {
		return fmt.Errorf("adjust guest resources for sandbox %s: %w", c.sandboxID, err)
	}
	return nil
}

// setAggregate applies the aggregate to the kernel. In threaded mode the
// thread-aware knobs land on the sandbox cgroup while domain controllers
// land on the per-sandbox parent, which constrains the whole VMM.
func (c *CgroupsResource) setAggregate(agg *configs.Resources) error {
	if c.domainMgr == nil {
		return c.sandboxMgr.Set(agg)
	}
	threadRes := &configs.Resources{
		CpuShares:  agg.CpuShares,
		CpuQuota:   agg.CpuQuota,
		CpuPeriod:  agg.CpuPeriod,
		CpusetCpus: agg.CpusetCpus,
		CpusetMems: agg.CpusetMems,
		PidsLimit:  agg.PidsLimit,
	}
	domainRes := &configs.Resources{
		Memory:            agg.Memory,
		MemoryReservation: agg.MemoryReservation,
		MemorySwap:        agg.MemorySwap,
		BlkioWeight:       agg.BlkioWeight,
		HugetlbLimit:      agg.HugetlbLimit,
	}
	if err := c.sandboxMgr.Set(threadRes); err != nil {
		return err
	}
	return c.domainMgr.Set(domainRes)
}

// aggregate folds the per-container requests into the single resource
// struct applied to the sandbox cgroup. A container without a limit makes
// the corresponding sandbox limit unlimited: the guest must never be
// throttled below what one of its containers was promised.
func (c *CgroupsResource) aggregate() *configs.Resources {
	var (
		memory       int64
		quota        int64
		shares       uint64
		memUnlimited bool
		cpuUnlimited bool
	)
	for _, r := range c.containers {
		if r == nil {
			continue
		}
		if r.Memory > 0 {
			memory += r.Memory
		} else {
			memUnlimited = true
		}
		if r.CpuQuota > 0 {
			period := r.CpuPeriod
			if period == 0 {
				period = defaultCpuPeriod
			}
			// Normalize to the common period before summing.
			quota += r.CpuQuota * defaultCpuPeriod / int64(period)
		} else {
			cpuUnlimited = true
		}
		shares += r.CpuShares
	}

	agg := &configs.Resources{
		CpuShares: shares,
		CpuPeriod: defaultCpuPeriod,
	}
	if memUnlimited || memory == 0 {
		agg.Memory = -1
	} else {
		agg.Memory = memory
	}
	if cpuUnlimited || quota == 0 {
		agg.CpuQuota = -1
	} else {
		agg.CpuQuota = quota
	}
	return agg
}

// calcVcpus converts the aggregate CPU quota into the vcpu count the guest
// needs to honor it, rounding up. Zero means "leave the guest alone".
func calcVcpus(r *configs.Resources) uint32 {
	if r.CpuQuota <= 0 || r.CpuPeriod == 0 {
		return 0
	}
	return uint32((r.CpuQuota + int64(r.CpuPeriod) - 1) / int64(r.CpuPeriod))
}

// calcMemoryMB returns the aggregate memory limit in MiB, zero if
// unlimited.
func calcMemoryMB(r *configs.Resources) uint32 {
	if r.Memory <= 0 {
		return 0
	}
	return uint32(r.Memory >> 20)
}

// SetupAfterStartVM is the second-phase init: the cgroups had to exist
// before VM start to constrain it, but which host threads are vcpus is
// knowable only after. It moves each vcpu thread into the sandbox cgroup,
// leaving the rest of the VMM in the overhead cgroup.
func (c *CgroupsResource) SetupAfterStartVM(ctx context.Context, h hypervisor.Hypervisor) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return ErrCgroupDeleted
	}
	if c.overheadMgr == nil {
		// The whole VMM was attached to the sandbox cgroup already.
		return nil
	}

	tids, err := h.ThreadIDs(ctx)
	if err != nil {
		return fmt.Errorf("get vcpu thread ids for sandbox %s: %w", c.sandboxID, err)
	}
	if len(tids.Vcpus) == 0 {
		logrus.WithField("sandbox", c.sandboxID).Warn("no vcpu threads found, guest stays in the overhead cgroup")
		return nil
	}

	for _, tid := range tids.Vcpus {
		if err := c.moveVcpuToSandbox(tid); err != nil {
			return fmt.Errorf("move vcpu thread %d for sandbox %s: %w", tid, c.sandboxID, err)
		}
	}
	return nil
}

func (c *CgroupsResource) moveVcpuToSandbox(tid int) error {
	if c.config.ThreadedMode {
		return cgroups.WriteCgroupTask(c.sandboxMgr.Path(""), cgroups.CgroupThreads, tid)
	}
	// Legacy: one tasks file per mounted controller.
	for _, dir := range c.sandboxMgr.GetPaths() {
		if err := cgroups.WriteCgroupTask(dir, cgroups.CgroupTasks, tid); err != nil {
			return err
		}
	}
	return nil
}

// Delete tears the sandbox's cgroups down. It is idempotent: a second call
// is a no-op. A failed call leaves a state a retry can safely resume,
// since re-enumeration only ever sees a subset of what was there before.
func (c *CgroupsResource) Delete() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleted {
		return nil
	}
	if err := c.teardown(); err != nil {
		return fmt.Errorf("delete sandbox %s cgroups: %w", c.sandboxID, err)
	}
	c.deleted = true
	return nil
}

// SandboxCgroupPath returns the sandbox cgroup path in persisted form.
func (c *CgroupsResource) SandboxCgroupPath() string {
	return c.config.Path
}

// OverheadCgroupPath returns the overhead cgroup path, empty if none.
func (c *CgroupsResource) OverheadCgroupPath() string {
	return c.config.OverheadPath
}
