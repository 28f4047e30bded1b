package ports

import (
	"context"

	"github.com/craftbay/craftbay/internal/core/domain"
)

// CreateOptions carries optional per-creation parameters.
type CreateOptions struct {
	// RepoURL, when set, points at a git repository with a Dockerfile;
	// the instance runs an image built from it instead of the stock
	// server image.
	RepoURL string
}

// InstanceService is the front-end-facing surface of the lifecycle
// manager. Get reports absence as (nil, nil); the other owner-keyed
// operations return domain.ErrNotFound when no instance exists.
type InstanceService interface {
	Create(ctx context.Context, owner, version, username string, opts CreateOptions) (*domain.Instance, error)
	Get(ctx context.Context, owner string) (*domain.Instance, error)
	Start(ctx context.Context, owner string) error
	Stop(ctx context.Context, owner string) error
	Delete(ctx context.Context, owner string) error
	Query(ctx context.Context, owner string) (*domain.StatusReport, error)
	List(ctx context.Context) ([]domain.Instance, error)
}
