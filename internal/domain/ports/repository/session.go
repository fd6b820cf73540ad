package repository

import (
	"context"

	"cyber-research-service/internal/domain/model"
)

// SessionFilter narrows List results. Zero-value Status means no filter.
type SessionFilter struct {
	Status model.Status
	Offset int
	Limit  int
}

// SessionRepository stores research sessions. Mutate is the per-entry locked
// mutation path: fn runs with exclusive ownership of the session row, so two
// different sessions never block each other and readers always observe a
// consistent status+progress pair.
type SessionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.ResearchSession) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ResearchSession, error)
	List(ctx context.Context, tx Tx, f SessionFilter) ([]*model.ResearchSession, int, error)
	Mutate(ctx context.Context, id string, fn func(s *model.ResearchSession) error) error
	Delete(ctx context.Context, tx Tx, id string) error
}
