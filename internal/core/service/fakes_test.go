package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/craftbay/craftbay/internal/core/domain"
	"github.com/craftbay/craftbay/internal/core/ports"
)

// fakeRuntime is an in-memory ContainerRuntime double. Containers are
// keyed by name; per-name errors can be injected to simulate engine
// failures.
type fakeRuntime struct {
	mu         sync.Mutex
	containers map[string]*ports.Container
	stats      map[string]ports.ResourceStats
	getErr     map[string]error
	nextID     int
}

var _ ports.ContainerRuntime = (*fakeRuntime)(nil)

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		containers: make(map[string]*ports.Container),
		stats:      make(map[string]ports.ResourceStats),
		getErr:     make(map[string]error),
	}
}

func (f *fakeRuntime) Run(_ context.Context, spec ports.RunSpec) (*ports.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// IDs are unique per creation, like a real engine's: recreating a
	// container under the same name yields a new identity.
	f.nextID++
	c := &ports.Container{
		ID:     fmt.Sprintf("ctr-%s-%d", spec.Name, f.nextID),
		Name:   spec.Name,
		State:  domain.StateRunning,
		Labels: spec.Labels,
	}
	f.containers[spec.Name] = c
	cp := *c
	return &cp, nil
}

func (f *fakeRuntime) Get(_ context.Context, name string) (*ports.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[name]; err != nil {
		return nil, err
	}
	c, ok := f.containers[name]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeRuntime) Start(_ context.Context, id string) error {
	return f.setState(id, domain.StateRunning)
}

func (f *fakeRuntime) Stop(_ context.Context, id string) error {
	return f.setState(id, domain.StateStopped)
}

func (f *fakeRuntime) setState(id string, state domain.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.containers {
		if c.ID == id {
			c.State = state
			return nil
		}
	}
	return errors.New("no such container")
}

func (f *fakeRuntime) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, c := range f.containers {
		if c.ID == id {
			delete(f.containers, name)
			return nil
		}
	}
	return errors.New("no such container")
}

func (f *fakeRuntime) List(_ context.Context) ([]ports.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ports.Container, 0, len(f.containers))
	for _, c := range f.containers {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeRuntime) Stats(_ context.Context, id string) (ports.ResourceStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats[id], nil
}

// id returns the ID of the named container, or "" when the container does
// not exist.
func (f *fakeRuntime) id(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return ""
	}
	return c.ID
}

// state returns the current state of the named container, or "" when the
// container does not exist.
func (f *fakeRuntime) state(name string) domain.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.containers[name]
	if !ok {
		return ""
	}
	return c.State
}

// fakeProbe is a StatusProbe double returning a configurable status or
// error for every call.
type fakeProbe struct {
	mu     sync.Mutex
	status domain.ServerStatus
	err    error
}

var _ ports.StatusProbe = (*fakeProbe)(nil)

func (f *fakeProbe) Probe(context.Context, string, int) (*domain.ServerStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	st := f.status
	return &st, nil
}

func (f *fakeProbe) set(online int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.Players.Online = online
	f.err = err
}

// fakeAllocator hands out sequential ports starting at 30000.
type fakeAllocator struct {
	mu   sync.Mutex
	next int
}

var _ ports.PortAllocator = (*fakeAllocator)(nil)

func (f *fakeAllocator) Allocate() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next == 0 {
		f.next = 30000
	}
	f.next++
	return f.next, nil
}

func (f *fakeAllocator) Release(int) {}

func newTestManager(rt *fakeRuntime, probe *fakeProbe) *Manager {
	return NewManager(rt, probe, &fakeAllocator{}, nil, ManagerConfig{}, nil)
}
