package workflow

import (
	"testing"

	"cyber-research-service/internal/domain/model"
)

func TestLedgerStepOrderContiguous(t *testing.T) {
	l := NewLedger("s1")
	for i := 0; i < 4; i++ {
		id := l.Start("analyst", "SecurityAnalyst", "analyze_topic", nil)
		l.Complete(id, map[string]any{"content_length": 10}, []string{"src"})
	}

	recs := l.Records()
	if len(recs) != 4 {
		t.Fatalf("want 4 records, got %d", len(recs))
	}
	for i, r := range recs {
		if r.StepOrder != i+1 {
			t.Errorf("record %d: step order = %d, want %d", i, r.StepOrder, i+1)
		}
	}
}

func TestLedgerAtMostOneRunning(t *testing.T) {
	l := NewLedger("s1")
	a := l.Start("analyst", "SecurityAnalyst", "analyze_topic", nil)
	l.Complete(a, nil, nil)
	b := l.Start("historian", "Historian", "analyze_topic", nil)

	running := 0
	for _, r := range l.Records() {
		if r.Status == model.ActivityRunning {
			running++
		}
	}
	if running != 1 {
		t.Fatalf("running records = %d, want 1", running)
	}
	l.Fail(b, "boom", 0)
	for _, r := range l.Records() {
		if r.Status == model.ActivityRunning {
			t.Fatalf("record %s still running after terminal transition", r.ID)
		}
	}
}

func TestLedgerDuplicateCompleteIsNoop(t *testing.T) {
	l := NewLedger("s1")
	id := l.Start("analyst", "SecurityAnalyst", "analyze_topic", nil)
	l.Complete(id, map[string]any{"n": 1}, nil)
	l.Complete(id, map[string]any{"n": 2}, nil)
	l.Fail(id, "late failure", 3)

	rec := l.Records()[0]
	if rec.Status != model.ActivityCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if rec.Output["n"] != 1 {
		t.Errorf("output overwritten by duplicate call: %v", rec.Output)
	}
	if rec.ErrorMessage != "" {
		t.Errorf("error message set on completed record: %q", rec.ErrorMessage)
	}
}

func TestLedgerUnknownActivityIgnored(t *testing.T) {
	l := NewLedger("s1")
	l.Complete("no-such-id", nil, nil)
	l.Fail("no-such-id", "x", 0)
	if len(l.Records()) != 0 {
		t.Fatal("unknown activity mutated ledger")
	}
}

func TestLedgerFailRecordsErrorAndRetries(t *testing.T) {
	l := NewLedger("s1")
	id := l.Start("researcher", "ThreatResearcher", "analyze_topic", nil)
	l.Fail(id, "upstream timeout", 2)

	rec := l.Records()[0]
	if rec.Status != model.ActivityFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if rec.ErrorMessage != "upstream timeout" || rec.RetryCount != 2 {
		t.Errorf("failure info = (%q, %d)", rec.ErrorMessage, rec.RetryCount)
	}
	if rec.EndTime.IsZero() {
		t.Error("end time not stamped on failure")
	}
}

func TestSnapshotContributionsAndTimeline(t *testing.T) {
	l := NewLedger("s1")
	a := l.Start("analyst", "SecurityAnalyst", "analyze_topic", nil)
	l.Complete(a, nil, []string{"a.example", "b.example", "a.example"})
	b := l.Start("analyst", "SecurityAnalyst", "review", nil)
	l.Complete(b, nil, []string{"b.example"})
	c := l.Start("historian", "Historian", "analyze_topic", nil)
	l.Fail(c, "no archive access", 0)

	snap := l.Snapshot()
	if snap.Summary.TotalSteps != 3 || snap.Summary.CompletedSteps != 2 || snap.Summary.FailedSteps != 1 {
		t.Fatalf("summary = %+v", snap.Summary)
	}
	if got := len(snap.Summary.ExpertsUsed); got != 2 {
		t.Fatalf("experts used = %d, want 2", got)
	}

	analyst := snap.Contributions["analyst"]
	if analyst.StepsCompleted != 2 {
		t.Errorf("analyst steps completed = %d, want 2", analyst.StepsCompleted)
	}
	if len(analyst.Sources) != 2 {
		t.Errorf("analyst sources not deduplicated: %v", analyst.Sources)
	}
	if !snap.Contributions["historian"].Failed {
		t.Error("historian contribution not marked failed")
	}

	for i, step := range snap.Timeline {
		if step.StepOrder != i+1 {
			t.Errorf("timeline out of order at %d: %+v", i, step)
		}
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	l := NewLedger("s1")
	id := l.Start("analyst", "SecurityAnalyst", "analyze_topic", nil)
	snap := l.Snapshot()
	l.Complete(id, nil, nil)

	if snap.Activities[0].Status != model.ActivityRunning {
		t.Fatal("snapshot mutated by later ledger writes")
	}
}
