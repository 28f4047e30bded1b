package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/craftbay/craftbay/internal/core/domain"
	"github.com/craftbay/craftbay/internal/core/ports"
)

// ManagerConfig holds the provisioning parameters applied to every new
// instance.
type ManagerConfig struct {
	// Image is the game-server image run for instances without a custom
	// build. Defaults to DefaultImage.
	Image string

	// Memory is the heap size handed to the server process, in the
	// image's MEMORY notation. Defaults to DefaultMemory.
	Memory string

	// ProbeHost is the address the status probe dials; the published
	// host port lives on the container host itself. Defaults to
	// DefaultProbeHost.
	ProbeHost string
}

const (
	DefaultImage     = "itzg/minecraft-server"
	DefaultMemory    = "2048M"
	DefaultProbeHost = "127.0.0.1"
)

func (c *ManagerConfig) applyDefaults() {
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.Memory == "" {
		c.Memory = DefaultMemory
	}
	if c.ProbeHost == "" {
		c.ProbeHost = DefaultProbeHost
	}
}

// Verify Manager satisfies the front-end-facing surface at compile time.
var _ ports.InstanceService = (*Manager)(nil)

// Manager orchestrates instance lifecycle operations against the container
// runtime and the status probe. It holds no instance state of its own: the
// runtime's object set, including the labels written at creation, is the
// single source of truth, so the manager survives process restarts without
// drift.
//
// All mutating operations and Query serialize per owner, so a watchdog
// auto-stop can never interleave with a user-requested start or delete on
// the same instance.
type Manager struct {
	runtime   ports.ContainerRuntime
	probe     ports.StatusProbe
	allocator ports.PortAllocator
	builder   ports.ImageBuilder
	cfg       ManagerConfig
	log       *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager wires a Manager. builder may be nil when custom image builds
// are not offered; logger nil falls back to slog.Default().
func NewManager(runtime ports.ContainerRuntime, probe ports.StatusProbe, allocator ports.PortAllocator, builder ports.ImageBuilder, cfg ManagerConfig, logger *slog.Logger) *Manager {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		runtime:   runtime,
		probe:     probe,
		allocator: allocator,
		builder:   builder,
		cfg:       cfg,
		log:       logger,
		locks:     make(map[string]*sync.Mutex),
	}
}

// ownerLock returns the mutex serializing operations for one owner.
// Locks are created lazily and kept for the process lifetime; the map is
// bounded by the number of distinct owners ever seen.
func (m *Manager) ownerLock(owner string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[owner]
	if !ok {
		l = &sync.Mutex{}
		m.locks[owner] = l
	}
	return l
}

// Create provisions and starts a new instance for owner. It returns
// domain.ErrAlreadyExists if the owner already has an un-deleted instance.
// The container is named after the owner and carries the port and version
// as labels, which every later operation reads back from the runtime.
func (m *Manager) Create(ctx context.Context, owner, version, username string, opts ports.CreateOptions) (*domain.Instance, error) {
	lock := m.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	existing, err := m.runtime.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("check existing instance: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	image := m.cfg.Image
	if opts.RepoURL != "" {
		if m.builder == nil {
			return nil, fmt.Errorf("custom image builds are not enabled")
		}
		image, err = m.builder.BuildImage(ctx, opts.RepoURL, "craftbay/"+owner)
		if err != nil {
			return nil, fmt.Errorf("build custom image: %w", err)
		}
	}

	port, err := m.allocator.Allocate()
	if err != nil {
		return nil, fmt.Errorf("allocate port: %w", err)
	}
	// The reservation only guards the window until the container binds
	// the port (or creation fails); either way it can go afterwards.
	defer m.allocator.Release(port)

	c, err := m.runtime.Run(ctx, ports.RunSpec{
		Name:  owner,
		Image: image,
		Port:  port,
		Env: map[string]string{
			"EULA":    "TRUE",
			"TYPE":    "PAPER",
			"VERSION": version,
			"MEMORY":  m.cfg.Memory,
			"OPS":     username,
			"MOTD":    username + "'s server",
		},
		Labels: map[string]string{
			domain.LabelManaged: "true",
			domain.LabelPort:    strconv.Itoa(port),
			domain.LabelVersion: version,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("run instance container: %w", err)
	}

	m.log.Info("instance created",
		"owner", owner, "username", username, "version", version, "port", port)

	return &domain.Instance{
		Owner:   owner,
		ID:      c.ID,
		Port:    port,
		Version: version,
		State:   domain.StateRunning,
	}, nil
}

// Get looks up the owner's instance. Absence is reported as (nil, nil),
// never as an error; this is the existence check the front end and every
// other operation build on.
func (m *Manager) Get(ctx context.Context, owner string) (*domain.Instance, error) {
	c, err := m.runtime.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	if c == nil {
		m.log.Debug("instance not found", "owner", owner)
		return nil, nil
	}
	return instanceFromContainer(c), nil
}

// Start transitions the owner's instance to running. Starting an already
// running instance is a no-op at the engine level.
func (m *Manager) Start(ctx context.Context, owner string) error {
	lock := m.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	c, err := m.runtime.Get(ctx, owner)
	if err != nil {
		return fmt.Errorf("get instance: %w", err)
	}
	if c == nil {
		return domain.ErrNotFound
	}
	if err := m.runtime.Start(ctx, c.ID); err != nil {
		return fmt.Errorf("start instance: %w", err)
	}
	m.log.Info("instance started", "owner", owner)
	return nil
}

// Stop transitions the owner's instance to stopped. Stopping an already
// stopped instance is a no-op at the engine level.
func (m *Manager) Stop(ctx context.Context, owner string) error {
	lock := m.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	c, err := m.runtime.Get(ctx, owner)
	if err != nil {
		return fmt.Errorf("get instance: %w", err)
	}
	if c == nil {
		return domain.ErrNotFound
	}
	if err := m.runtime.Stop(ctx, c.ID); err != nil {
		return fmt.Errorf("stop instance: %w", err)
	}
	m.log.Info("instance stopped", "owner", owner)
	return nil
}

// Delete stops the owner's instance if it is running and removes its
// container permanently. The owner may create a fresh instance afterwards.
func (m *Manager) Delete(ctx context.Context, owner string) error {
	lock := m.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	c, err := m.runtime.Get(ctx, owner)
	if err != nil {
		return fmt.Errorf("get instance: %w", err)
	}
	if c == nil {
		return domain.ErrNotFound
	}
	if c.State == domain.StateRunning {
		if err := m.runtime.Stop(ctx, c.ID); err != nil {
			return fmt.Errorf("stop instance before removal: %w", err)
		}
	}
	if err := m.runtime.Remove(ctx, c.ID); err != nil {
		return fmt.Errorf("remove instance: %w", err)
	}
	m.log.Warn("instance deleted", "owner", owner)
	return nil
}

// Query reports the live status of the owner's instance. A container that
// is not running yields only its state and port. A running container is
// probed over the status protocol; if the server process is not answering
// yet the report says "starting" — a booting server is a normal condition
// and the probe error is never surfaced.
func (m *Manager) Query(ctx context.Context, owner string) (*domain.StatusReport, error) {
	lock := m.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	c, err := m.runtime.Get(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	if c == nil {
		return nil, domain.ErrNotFound
	}
	return m.queryContainer(ctx, c)
}

// queryContainer builds a status report for an already fetched container.
// Callers must hold the owner's lock.
func (m *Manager) queryContainer(ctx context.Context, c *ports.Container) (*domain.StatusReport, error) {
	inst := instanceFromContainer(c)

	if c.State != domain.StateRunning {
		return &domain.StatusReport{Port: inst.Port, Status: string(c.State)}, nil
	}

	status, err := m.probe.Probe(ctx, m.cfg.ProbeHost, inst.Port)
	if err != nil {
		m.log.Debug("status probe failed, instance still starting",
			"owner", inst.Owner, "port", inst.Port, "error", err)
		return &domain.StatusReport{Port: inst.Port, Status: domain.StatusStarting}, nil
	}

	stats, err := m.runtime.Stats(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("read instance stats: %w", err)
	}

	return &domain.StatusReport{
		Port:        inst.Port,
		Status:      string(domain.StateRunning),
		Version:     inst.Version,
		Players:     &status.Players,
		Description: status.Description,
		RAMUsage:    stats.MemoryBytes,
	}, nil
}

// List returns every managed instance known to the runtime.
func (m *Manager) List(ctx context.Context) ([]domain.Instance, error) {
	cs, err := m.runtime.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	out := make([]domain.Instance, 0, len(cs))
	for i := range cs {
		out = append(out, *instanceFromContainer(&cs[i]))
	}
	return out, nil
}

// instanceFromContainer materializes an Instance from a runtime object and
// its labels. A missing or malformed port label yields port 0 rather than
// an error; such a container was not created by this manager.
func instanceFromContainer(c *ports.Container) *domain.Instance {
	port, _ := strconv.Atoi(c.Labels[domain.LabelPort])
	return &domain.Instance{
		Owner:   c.Name,
		ID:      c.ID,
		Port:    port,
		Version: c.Labels[domain.LabelVersion],
		State:   c.State,
	}
}
