package memstore

import (
	"context"
	"sort"
	"sync"

	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/repository"
)

var _ repository.ActivityRepository = (*ActivityRepo)(nil)

type ActivityRepo struct {
	mu        sync.RWMutex
	bySession map[string][]model.ActivityRecord
}

func NewActivityRepo() *ActivityRepo {
	return &ActivityRepo{bySession: make(map[string][]model.ActivityRecord)}
}

// SaveAll replaces the stored records of each session present in the batch.
// The ledger hands over the full record set once, at the end of a run.
func (r *ActivityRepo) SaveAll(ctx context.Context, _ repository.Tx, records []model.ActivityRecord) error {
	grouped := make(map[string][]model.ActivityRecord)
	for _, rec := range records {
		grouped[rec.SessionID] = append(grouped[rec.SessionID], rec)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, recs := range grouped {
		cp := make([]model.ActivityRecord, len(recs))
		copy(cp, recs)
		r.bySession[sid] = cp
	}
	return nil
}

func (r *ActivityRepo) FindBySession(ctx context.Context, _ repository.Tx, sessionID string) ([]model.ActivityRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recs := r.bySession[sessionID]
	out := make([]model.ActivityRecord, len(recs))
	copy(out, recs)
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (r *ActivityRepo) DeleteBySession(ctx context.Context, _ repository.Tx, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bySession, sessionID)
	return nil
}
