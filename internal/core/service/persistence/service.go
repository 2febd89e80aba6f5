package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"persistor/internal/core/domain"
)

type persistenceService struct {
	repo Repository
}

// NewService wraps repo. A nil repo is a configuration error.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, NewConfigurationError("persistence: missing repository")
	}

	return &persistenceService{
		repo: repo,
	}, nil
}

var _ Service = (*persistenceService)(nil)

func (s *persistenceService) Repository() Repository {
	return s.repo
}

func (s *persistenceService) Create(ctx context.Context, record domain.Record) (int, error) {
	return s.repo.Create(ctx, record)
}

func (s *persistenceService) Get(ctx context.Context, id int) (domain.Record, error) {
	return s.repo.Get(ctx, id)
}

func (s *persistenceService) GetAll(ctx context.Context) ([]domain.Record, error) {
	return s.repo.GetAll(ctx)
}

func (s *persistenceService) Update(ctx context.Context, record domain.Record) error {
	// an update never reaches storage without an id to address
	if !record.HasID() {
		serialised, err := json.Marshal(record)
		if err != nil {
			serialised = []byte(fmt.Sprintf("%v", map[string]any(record)))
		}

		return &Error{
			Kind:    KindClient,
			Message: fmt.Sprintf(`no "id" specified in the record (%s)`, serialised),
		}
	}

	return s.repo.Update(ctx, record)
}

func (s *persistenceService) Remove(ctx context.Context, id int) error {
	return s.repo.Remove(ctx, id)
}
