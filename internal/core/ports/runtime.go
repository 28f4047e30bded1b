package ports

import (
	"context"

	"github.com/craftbay/craftbay/internal/core/domain"
)

// Container is a runtime object as the engine reports it: the engine's own
// record plus the labels written at creation time.
type Container struct {
	ID     string
	Name   string
	State  domain.State
	Labels map[string]string
}

// RunSpec describes a container to instantiate and start.
type RunSpec struct {
	Name   string
	Image  string
	Port   int // host port published to the game-server listener
	Env    map[string]string
	Labels map[string]string
}

// ResourceStats is a point-in-time resource snapshot for a container.
type ResourceStats struct {
	MemoryBytes uint64
}

// ContainerRuntime is the capability set the lifecycle manager needs from a
// container engine. Implementations exist for Docker; the interface keeps
// the core testable with doubles and portable to other engines.
//
// Get returns (nil, nil) when no container with the given name exists;
// absence is a normal lifecycle state, not an error. Every other engine
// failure is returned as an error.
type ContainerRuntime interface {
	Run(ctx context.Context, spec RunSpec) (*Container, error)
	Get(ctx context.Context, name string) (*Container, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]Container, error)
	Stats(ctx context.Context, id string) (ResourceStats, error)
}
