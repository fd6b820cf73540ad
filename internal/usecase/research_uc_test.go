package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cyber-research-service/internal/domain"
	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/adapter"
	"cyber-research-service/internal/domain/ports/repository"
	"cyber-research-service/internal/infra/fanout"
	"cyber-research-service/internal/infra/memstore"
	"cyber-research-service/internal/infra/worker"
	"cyber-research-service/internal/pipeline"
	"cyber-research-service/internal/title"
)

type stubExpert struct {
	name string
	fail bool
	gate chan struct{} // when non-nil, Analyze blocks until the gate closes
}

func (s *stubExpert) Name() string { return s.name }
func (s *stubExpert) Type() string { return "StubExpert" }

func (s *stubExpert) Analyze(ctx context.Context, acx adapter.AnalysisContext) (*adapter.Analysis, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail {
		return nil, errors.New("upstream model error")
	}
	return &adapter.Analysis{
		Content: s.name + " findings on " + acx.Topic,
		Sources: []string{"https://example.com/" + s.name},
	}, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(p adapter.RenderParams) (string, error) {
	var b strings.Builder
	b.WriteString("# " + p.Title + "\n\n")
	for _, s := range p.Sections {
		b.WriteString(s.Body + "\n")
	}
	return b.String(), nil
}
func (stubRenderer) Summary(string) string               { return "summary" }
func (stubRenderer) Tags(topic, _ string) []string       { return []string{topic} }
func (stubRenderer) KeyConcepts(string) []string         { return nil }
func (stubRenderer) Exercises(string, []string) []string { return nil }

type recordingObserver struct {
	mu      sync.Mutex
	updates []model.ProgressUpdate
	closed  bool
}

func (o *recordingObserver) Send(u model.ProgressUpdate) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, u)
	return nil
}

func (o *recordingObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *recordingObserver) snapshot() []model.ProgressUpdate {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]model.ProgressUpdate, len(o.updates))
	copy(out, o.updates)
	return out
}

type testEnv struct {
	uc         *researchUC
	sessions   *memstore.SessionRepo
	activities *memstore.ActivityRepo
	hub        *fanout.Hub
	cancel     context.CancelFunc
}

func newTestEnv(t *testing.T, experts []adapter.ExpertAdapter, workers int) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	sessions := memstore.NewSessionRepo()
	activities := memstore.NewActivityRepo()
	hub := fanout.NewHub()
	coord := pipeline.New(experts, stubRenderer{}, title.NewGenerator(title.Config{MaxLength: 80}), pipeline.Config{}, &log)
	pool := worker.NewPool(workers, &log)
	uc := NewResearchUseCase(sessions, activities, memstore.NewTxManager(), coord, pool, hub, 2, &log)

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	go uc.Run(ctx)
	t.Cleanup(cancel)

	return &testEnv{uc: uc, sessions: sessions, activities: activities, hub: hub, cancel: cancel}
}

func validRequest() model.ResearchRequest {
	return model.ResearchRequest{
		Topic:             "Zero Trust Architecture",
		ContentDirections: "cover adoption pitfalls",
		OutputFormat:      model.FormatShortForm,
		Audience:          model.AudienceProfessionals,
		Depth:             model.DepthIntermediate,
	}
}

func waitTerminal(t *testing.T, env *testEnv, id string) *model.ResearchSession {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		sess, err := env.uc.Status(context.Background(), id)
		if err == nil && sess.Status.Terminal() {
			return sess
		}
		select {
		case <-deadline:
			t.Fatalf("session %s never reached a terminal status", id)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func threeStubs() []adapter.ExpertAdapter {
	return []adapter.ExpertAdapter{
		&stubExpert{name: "security_analyst"},
		&stubExpert{name: "threat_researcher"},
		&stubExpert{name: "historian"},
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	env := newTestEnv(t, threeStubs(), 1)

	req := validRequest()
	req.Topic = ""
	if _, err := env.uc.Submit(context.Background(), req); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("Submit() error = %v, want ErrInvalidArgument", err)
	}

	req = validRequest()
	req.OutputFormat = "haiku"
	if _, err := env.uc.Submit(context.Background(), req); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("Submit() error = %v, want ErrInvalidArgument", err)
	}

	if _, total, _ := env.uc.List(context.Background(), repository.SessionFilter{}); total != 0 {
		t.Errorf("rejected submissions must not leave session rows, got %d", total)
	}
}

func TestSubmitRunsToCompletion(t *testing.T) {
	gate := make(chan struct{})
	experts := []adapter.ExpertAdapter{
		&stubExpert{name: "security_analyst", gate: gate},
		&stubExpert{name: "threat_researcher"},
		&stubExpert{name: "historian"},
	}
	env := newTestEnv(t, experts, 2)

	obs := &recordingObserver{}
	sess, err := env.uc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if sess.Status != model.StatusPending {
		t.Errorf("submitted session status = %s, want pending", sess.Status)
	}
	env.hub.Register(sess.ID, obs)
	close(gate)

	final := waitTerminal(t, env, sess.ID)
	if final.Status != model.StatusCompleted {
		t.Fatalf("final status = %s (%s), want completed", final.Status, final.ErrorMessage)
	}
	if final.Progress != 100 {
		t.Errorf("final progress = %d, want 100", final.Progress)
	}

	res, err := env.uc.Result(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Result() error = %v", err)
	}
	if res.Title == "" || res.Content == "" {
		t.Error("completed result must carry a title and content")
	}
	if res.SessionID != sess.ID {
		t.Errorf("result session = %s, want %s", res.SessionID, sess.ID)
	}

	wf, err := env.uc.Workflow(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Workflow() error = %v", err)
	}
	if len(wf.Activities) != 4 {
		t.Errorf("workflow has %d activities, want 4", len(wf.Activities))
	}

	// Observer updates are monotonic and end in completed/100. The observer
	// registered after submit so it may have missed early updates, but never
	// out-of-order ones.
	updates := obs.snapshot()
	if len(updates) == 0 {
		t.Fatal("observer received no updates")
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Progress < updates[i-1].Progress {
			t.Errorf("observer progress regressed: %d -> %d", updates[i-1].Progress, updates[i].Progress)
		}
	}
	last := updates[len(updates)-1]
	if last.Status != model.StatusCompleted || last.Progress != 100 {
		t.Errorf("last update = %+v, want completed/100", last)
	}
}

func TestResultBeforeCompletionIsNotReady(t *testing.T) {
	gate := make(chan struct{})
	experts := []adapter.ExpertAdapter{
		&stubExpert{name: "security_analyst", gate: gate},
		&stubExpert{name: "threat_researcher"},
		&stubExpert{name: "historian"},
	}
	env := newTestEnv(t, experts, 1)

	sess, err := env.uc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := env.uc.Result(context.Background(), sess.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("Result() before completion error = %v, want ErrNotReady", err)
	}
	if _, err := env.uc.Workflow(context.Background(), sess.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("Workflow() before completion error = %v, want ErrNotReady", err)
	}

	close(gate)
	final := waitTerminal(t, env, sess.ID)
	if final.Status != model.StatusCompleted {
		t.Fatalf("final status = %s, want completed", final.Status)
	}
	if _, err := env.uc.Result(context.Background(), sess.ID); err != nil {
		t.Errorf("Result() after completion error = %v", err)
	}
}

func TestExpertFailureFailsSession(t *testing.T) {
	experts := []adapter.ExpertAdapter{
		&stubExpert{name: "security_analyst"},
		&stubExpert{name: "threat_researcher", fail: true},
		&stubExpert{name: "historian"},
	}
	env := newTestEnv(t, experts, 1)

	sess, err := env.uc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	final := waitTerminal(t, env, sess.ID)
	if final.Status != model.StatusFailed {
		t.Fatalf("final status = %s, want failed", final.Status)
	}
	if final.ErrorMessage == "" {
		t.Error("failed session must carry an error message")
	}
	if final.Progress != 45 {
		t.Errorf("failed session progress = %d, want frozen at 45", final.Progress)
	}
	if final.Workflow == nil || len(final.Workflow.Activities) != 2 {
		t.Fatalf("failed session workflow = %+v, want 2 activities", final.Workflow)
	}
	if _, err := env.uc.Result(context.Background(), sess.ID); !errors.Is(err, domain.ErrNotReady) {
		t.Errorf("Result() on failed session error = %v, want ErrNotReady", err)
	}
}

func TestConcurrentSessionsStayIsolated(t *testing.T) {
	env := newTestEnv(t, threeStubs(), 4)

	a, err := env.uc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	reqB := validRequest()
	reqB.Topic = "Supply Chain Attacks"
	b, err := env.uc.Submit(context.Background(), reqB)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	finalA := waitTerminal(t, env, a.ID)
	finalB := waitTerminal(t, env, b.ID)
	if finalA.Status != model.StatusCompleted || finalB.Status != model.StatusCompleted {
		t.Fatalf("statuses = %s/%s, want completed/completed", finalA.Status, finalB.Status)
	}

	for _, sess := range []*model.ResearchSession{finalA, finalB} {
		recs, err := env.activities.FindBySession(context.Background(), repository.NoTX, sess.ID)
		if err != nil {
			t.Fatalf("FindBySession(%s) error = %v", sess.ID, err)
		}
		if len(recs) != 4 {
			t.Fatalf("session %s has %d activity records, want 4", sess.ID, len(recs))
		}
		for i, rec := range recs {
			if rec.SessionID != sess.ID {
				t.Errorf("record %d belongs to %s, want %s", i, rec.SessionID, sess.ID)
			}
			if rec.StepOrder != i+1 {
				t.Errorf("record %d step order = %d, want %d", i, rec.StepOrder, i+1)
			}
		}
		if sess.Result.SessionID != sess.ID {
			t.Errorf("result attached to %s references %s", sess.ID, sess.Result.SessionID)
		}
	}
}

func TestSubmitQueueSaturation(t *testing.T) {
	gate := make(chan struct{})
	experts := []adapter.ExpertAdapter{
		&stubExpert{name: "security_analyst", gate: gate},
		&stubExpert{name: "threat_researcher"},
		&stubExpert{name: "historian"},
	}
	env := newTestEnv(t, experts, 1)

	// One worker, queue capacity 4: six rapid submissions must overflow.
	var accepted []*model.ResearchSession
	var rejected bool
	for i := 0; i < 6; i++ {
		sess, err := env.uc.Submit(context.Background(), validRequest())
		if err != nil {
			if !errors.Is(err, domain.ErrQueueFull) {
				t.Fatalf("Submit() error = %v, want ErrQueueFull", err)
			}
			rejected = true
			continue
		}
		accepted = append(accepted, sess)
	}
	if !rejected {
		t.Fatal("expected at least one submission to be rejected")
	}

	close(gate)
	for _, sess := range accepted {
		final := waitTerminal(t, env, sess.ID)
		if final.Status != model.StatusCompleted {
			t.Errorf("session %s status = %s, want completed", sess.ID, final.Status)
		}
	}

	_, total, err := env.uc.List(context.Background(), repository.SessionFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if total != len(accepted) {
		t.Errorf("stored sessions = %d, want %d (rejected rows must be removed)", total, len(accepted))
	}
}

func TestDeleteCascadesAndClosesObservers(t *testing.T) {
	env := newTestEnv(t, threeStubs(), 1)

	sess, err := env.uc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitTerminal(t, env, sess.ID)

	obs := &recordingObserver{}
	env.hub.Register(sess.ID, obs)

	if err := env.uc.Delete(context.Background(), sess.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := env.uc.Status(context.Background(), sess.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Status() after delete error = %v, want ErrNotFound", err)
	}
	recs, err := env.activities.FindBySession(context.Background(), repository.NoTX, sess.ID)
	if err != nil {
		t.Fatalf("FindBySession() error = %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("delete left %d activity records behind", len(recs))
	}

	obs.mu.Lock()
	closed := obs.closed
	obs.mu.Unlock()
	if !closed {
		t.Error("delete must close live observers")
	}

	if err := env.uc.Delete(context.Background(), sess.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

// failingSessionRepo simulates a store outage: every Mutate fails.
type failingSessionRepo struct {
	*memstore.SessionRepo
	mu      sync.Mutex
	mutates int
}

func (r *failingSessionRepo) Mutate(context.Context, string, func(*model.ResearchSession) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutates++
	return errors.New("store unavailable")
}

func (r *failingSessionRepo) mutateCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutates
}

func TestPersistenceFailureRetriesThenFailsSession(t *testing.T) {
	log := zerolog.Nop()
	sessions := &failingSessionRepo{SessionRepo: memstore.NewSessionRepo()}
	activities := memstore.NewActivityRepo()
	hub := fanout.NewHub()
	coord := pipeline.New(threeStubs(), stubRenderer{}, title.NewGenerator(title.Config{MaxLength: 80}), pipeline.Config{}, &log)
	pool := worker.NewPool(1, &log)
	uc := NewResearchUseCase(sessions, activities, memstore.NewTxManager(), coord, pool, hub, 1, &log)
	uc.persistBackoff = time.Millisecond

	sess := model.NewResearchSession(validRequest())
	if err := sessions.Save(context.Background(), repository.NoTX, sess); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	obs := &recordingObserver{}
	hub.Register(sess.ID, obs)

	uc.apply(context.Background(), progressEvent{
		sessionID: sess.ID,
		status:    model.StatusInitializing,
		progress:  10,
		step:      "Initializing research pipeline",
	})

	// One initial attempt, one retry, then the best-effort fail write.
	if got := sessions.mutateCalls(); got != 3 {
		t.Fatalf("Mutate called %d times, want 3", got)
	}

	updates := obs.snapshot()
	if len(updates) != 1 {
		t.Fatalf("observer received %d updates, want 1", len(updates))
	}
	fail := updates[0]
	if fail.Status != model.StatusFailed {
		t.Errorf("published status = %s, want failed", fail.Status)
	}
	if !strings.Contains(fail.ErrorMessage, domain.ErrPersistence.Error()) {
		t.Errorf("error message %q must name the persistence failure", fail.ErrorMessage)
	}
	if fail.Progress != 10 {
		t.Errorf("published progress = %d, want 10 (last reported value)", fail.Progress)
	}

	obs.mu.Lock()
	closed := obs.closed
	obs.mu.Unlock()
	if !closed {
		t.Error("persistence failure must close live observers")
	}
}

func TestStaleEventsAfterTerminalAreDropped(t *testing.T) {
	env := newTestEnv(t, threeStubs(), 1)

	sess, err := env.uc.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitTerminal(t, env, sess.ID)

	obs := &recordingObserver{}
	env.hub.Register(sess.ID, obs)

	env.uc.apply(context.Background(), progressEvent{
		sessionID: sess.ID,
		status:    model.StatusResearching,
		progress:  30,
		step:      "stale",
	})

	final, err := env.uc.Status(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if final.Status != model.StatusCompleted || final.Progress != 100 {
		t.Errorf("terminal session mutated by stale event: %s/%d", final.Status, final.Progress)
	}
	if len(obs.snapshot()) != 0 {
		t.Error("stale event must not reach observers")
	}
}
