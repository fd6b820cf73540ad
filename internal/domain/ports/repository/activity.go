package repository

import (
	"context"

	"cyber-research-service/internal/domain/model"
)

// ActivityRepository stores the per-session activity records. Records become
// immutable once their session terminates and are deleted only by the cascade
// of DeleteBySession.
type ActivityRepository interface {
	SaveAll(ctx context.Context, tx Tx, records []model.ActivityRecord) error
	FindBySession(ctx context.Context, tx Tx, sessionID string) ([]model.ActivityRecord, error)
	DeleteBySession(ctx context.Context, tx Tx, sessionID string) error
}
