package persistence

import (
	"context"
	"persistor/internal/core/domain"
)

// Repository is the contract every storage adapter implements. All failures
// are *Error values.
type Repository interface {
	// Queries
	Get(ctx context.Context, id int) (domain.Record, error)
	GetAll(ctx context.Context) ([]domain.Record, error)

	// Commands
	Create(ctx context.Context, record domain.Record) (int, error)
	Update(ctx context.Context, record domain.Record) error
	Remove(ctx context.Context, id int) error
}

// IDAllocator picks the id of a new record from the ids already in use.
type IDAllocator interface {
	Allocate(existing []int) int
}

// AllocatorFunc adapts a plain function to IDAllocator.
type AllocatorFunc func(existing []int) int

func (f AllocatorFunc) Allocate(existing []int) int {
	return f(existing)
}

// MaxPlusOne is the default allocator: one more than the largest existing id,
// or 1 for an empty collection.
var MaxPlusOne IDAllocator = AllocatorFunc(func(existing []int) int {
	maxID := 0
	for _, id := range existing {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1
})
