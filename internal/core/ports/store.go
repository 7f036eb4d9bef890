package ports

import (
	"context"

	"github.com/melih/lighthouse-notebooks/internal/core/domain"
)

// RecordStore persists container records.
type RecordStore interface {
	Insert(ctx context.Context, rec *domain.ContainerRecord) error
	FindByContainerID(ctx context.Context, containerID string) (*domain.ContainerRecord, error)
	FindByName(ctx context.Context, name string) (*domain.ContainerRecord, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.ContainerRecord, error)
	ListByStatus(ctx context.Context, status domain.ContainerStatus) ([]*domain.ContainerRecord, error)
	// UpdateStatus sets status and error detail on an existing record.
	// It reports whether a record matched; a missing record is not an error.
	UpdateStatus(ctx context.Context, containerID string, status domain.ContainerStatus, detail string) (bool, error)
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
}
