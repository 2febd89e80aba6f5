package persistence

import (
	"context"
	"persistor/internal/core/domain"
)

// Service is the single entry point callers use. It holds exactly one Repository.
type Service interface {
	// Queries
	Get(ctx context.Context, id int) (domain.Record, error)
	GetAll(ctx context.Context) ([]domain.Record, error)

	// Commands
	Create(ctx context.Context, record domain.Record) (int, error)
	Update(ctx context.Context, record domain.Record) error
	Remove(ctx context.Context, id int) error

	// Repository returns the adapter the service delegates to.
	Repository() Repository
}
