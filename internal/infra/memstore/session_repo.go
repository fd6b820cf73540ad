// Package memstore provides in-memory repositories with per-entry locking.
// It is the default store for single-process deployments and the test
// double for the postgres implementations.
package memstore

import (
	"context"
	"sort"
	"sync"

	"cyber-research-service/internal/domain"
	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

type sessionEntry struct {
	mu   sync.Mutex
	sess model.ResearchSession
}

// SessionRepo keeps one lock per session so that two different sessions'
// mutations never block each other. The outer lock only guards the map
// structure itself.
type SessionRepo struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{entries: make(map[string]*sessionEntry)}
}

func (r *SessionRepo) Save(ctx context.Context, _ repository.Tx, s *model.ResearchSession) error {
	r.mu.Lock()
	entry, ok := r.entries[s.ID]
	if !ok {
		entry = &sessionEntry{}
		r.entries[s.ID] = entry
	}
	r.mu.Unlock()

	entry.mu.Lock()
	entry.sess = *s
	entry.mu.Unlock()
	return nil
}

func (r *SessionRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.ResearchSession, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound
	}
	entry.mu.Lock()
	s := entry.sess
	entry.mu.Unlock()
	return &s, nil
}

func (r *SessionRepo) Mutate(ctx context.Context, id string, fn func(s *model.ResearchSession) error) error {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return fn(&entry.sess)
}

func (r *SessionRepo) List(ctx context.Context, _ repository.Tx, f repository.SessionFilter) ([]*model.ResearchSession, int, error) {
	r.mu.RLock()
	all := make([]*sessionEntry, 0, len(r.entries))
	for _, e := range r.entries {
		all = append(all, e)
	}
	r.mu.RUnlock()

	var matched []*model.ResearchSession
	for _, e := range all {
		e.mu.Lock()
		s := e.sess
		e.mu.Unlock()
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		matched = append(matched, &s)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	offset := f.Offset
	if offset > total {
		offset = total
	}
	end := total
	if f.Limit > 0 && offset+f.Limit < end {
		end = offset + f.Limit
	}
	return matched[offset:end], total, nil
}

func (r *SessionRepo) Delete(ctx context.Context, _ repository.Tx, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.entries, id)
	return nil
}
