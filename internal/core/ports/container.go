package ports

import (
	"context"

	"github.com/melih/lighthouse-notebooks/internal/core/domain"
)

// ContainerRuntime is a thin typed view over the container engine.
// Implementations make a single attempt per call and return domain errors:
// domain.ErrNotFound / domain.ErrImageNotFound where they apply, *domain.RuntimeError otherwise.
type ContainerRuntime interface {
	// Run creates and starts a detached container and returns its runtime id.
	Run(ctx context.Context, spec domain.RunSpec) (string, error)
	Inspect(ctx context.Context, id string) (*domain.ContainerAttrs, error)
	Stop(ctx context.Context, id string) error
	Remove(ctx context.Context, id string, force bool) error
	// List returns the containers carrying all of the given labels.
	List(ctx context.Context, labels map[string]string) ([]domain.ContainerAttrs, error)
}

// ContainerService is the lifecycle surface the HTTP layer talks to.
type ContainerService interface {
	Launch(ctx context.Context, userID string, req domain.ContainerRequest) (*domain.LaunchResult, error)
	Status(ctx context.Context, containerID string) (string, error)
	Stop(ctx context.Context, userID, containerID string) error
	List(ctx context.Context, userID string) ([]*domain.ContainerRecord, error)
	// Endpoint resolves a running container by name to its published host:port.
	Endpoint(ctx context.Context, name string) (string, error)
}
