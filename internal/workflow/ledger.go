// Package workflow tracks the pipeline stages of one research session: an
// append-only ledger of expert activities used for the audit trail and for
// the workflow metadata attached to finished sessions.
package workflow

import (
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"cyber-research-service/internal/domain/model"
)

// Ledger records the stages of a single session's pipeline. It is a passive
// data structure: it has no idea why a step failed or what happens next, that
// logic lives in the pipeline coordinator. Stages execute sequentially (one
// writer), but snapshots may be taken from other goroutines, so a mutex
// guards all state.
type Ledger struct {
	mu        sync.Mutex
	sessionID string
	counter   int
	startedAt time.Time

	records []model.ActivityRecord
	// running maps activity id to its index in records.
	running map[string]int
}

func NewLedger(sessionID string) *Ledger {
	return &Ledger{
		sessionID: sessionID,
		startedAt: time.Now(),
		running:   make(map[string]int),
	}
}

// Start appends a new Running record with the next step order and returns its
// activity id.
func (l *Ledger) Start(expertName, expertType, stepName string, input map[string]any) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.counter++
	id := ulid.Make().String()
	l.records = append(l.records, model.ActivityRecord{
		ID:         id,
		SessionID:  l.sessionID,
		ExpertName: expertName,
		ExpertType: expertType,
		StepName:   stepName,
		StepOrder:  l.counter,
		Status:     model.ActivityRunning,
		Input:      input,
		StartTime:  time.Now(),
	})
	l.running[id] = len(l.records) - 1
	return id
}

// Complete transitions Running -> Completed, stamping the end time and
// duration. Unknown or already-terminal activity ids are silently ignored,
// which protects against duplicate completion calls.
func (l *Ledger) Complete(activityID string, output map[string]any, sources []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.running[activityID]
	if !ok {
		return
	}
	rec := &l.records[idx]
	rec.Status = model.ActivityCompleted
	rec.EndTime = time.Now()
	rec.Duration = rec.EndTime.Sub(rec.StartTime)
	rec.Output = output
	rec.Sources = sources
	delete(l.running, activityID)
}

// Fail transitions Running -> Failed with the error message and the number of
// retries that were attempted. Same no-op semantics as Complete.
func (l *Ledger) Fail(activityID, errorMessage string, retryCount int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.running[activityID]
	if !ok {
		return
	}
	rec := &l.records[idx]
	rec.Status = model.ActivityFailed
	rec.EndTime = time.Now()
	rec.Duration = rec.EndTime.Sub(rec.StartTime)
	rec.ErrorMessage = errorMessage
	rec.RetryCount = retryCount
	delete(l.running, activityID)
}

// Records returns a copy of all activity records in step order.
func (l *Ledger) Records() []model.ActivityRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.ActivityRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Snapshot is a pure projection of the ledger, callable at any time. It is
// used both for live progress views and for the workflow metadata of the
// final result.
func (l *Ledger) Snapshot() *model.WorkflowMetadata {
	l.mu.Lock()
	defer l.mu.Unlock()

	meta := &model.WorkflowMetadata{
		Summary: model.WorkflowSummary{
			SessionID:  l.sessionID,
			StartTime:  l.startedAt,
			EndTime:    time.Now(),
			TotalSteps: len(l.records),
		},
		Activities:    make([]model.ActivityRecord, len(l.records)),
		Contributions: make(map[string]model.ExpertContribution),
		Timeline:      make([]model.TimelineStep, 0, len(l.records)),
	}
	copy(meta.Activities, l.records)

	seen := make(map[string]bool)
	for _, rec := range l.records {
		if !seen[rec.ExpertName] {
			seen[rec.ExpertName] = true
			meta.Summary.ExpertsUsed = append(meta.Summary.ExpertsUsed, rec.ExpertName)
		}

		switch rec.Status {
		case model.ActivityCompleted:
			meta.Summary.CompletedSteps++
		case model.ActivityFailed:
			meta.Summary.FailedSteps++
		}

		c := meta.Contributions[rec.ExpertName]
		c.ExpertType = rec.ExpertType
		if rec.Status == model.ActivityCompleted {
			c.StepsCompleted++
			c.TotalDuration += rec.Duration
			c.Sources = dedupe(append(c.Sources, rec.Sources...))
		}
		if rec.Status == model.ActivityFailed {
			c.Failed = true
		}
		meta.Contributions[rec.ExpertName] = c

		meta.Timeline = append(meta.Timeline, model.TimelineStep{
			StepOrder: rec.StepOrder,
			Expert:    rec.ExpertName,
			Action:    rec.StepName,
			Status:    rec.Status,
			Duration:  rec.Duration,
			StartedAt: rec.StartTime,
		})
	}
	sort.Slice(meta.Timeline, func(i, j int) bool {
		return meta.Timeline[i].StepOrder < meta.Timeline[j].StepOrder
	})
	return meta
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
