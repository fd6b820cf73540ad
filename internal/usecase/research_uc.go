package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"cyber-research-service/internal/domain"
	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/repository"
	"cyber-research-service/internal/infra/fanout"
	"cyber-research-service/internal/infra/logging"
	"cyber-research-service/internal/infra/metrics"
	"cyber-research-service/internal/infra/worker"
	"cyber-research-service/internal/pipeline"
	"cyber-research-service/internal/workflow"
)

// ResearchUseCase owns the session collection: submission, status/result
// queries, deletion, and the single mutation point for session state.
type ResearchUseCase interface {
	Submit(ctx context.Context, req model.ResearchRequest) (*model.ResearchSession, error)
	Status(ctx context.Context, id string) (*model.ResearchSession, error)
	Result(ctx context.Context, id string) (*model.ResearchResult, error)
	Workflow(ctx context.Context, id string) (*model.WorkflowMetadata, error)
	List(ctx context.Context, f repository.SessionFilter) ([]*model.ResearchSession, int, error)
	Delete(ctx context.Context, id string) error
}

// progressEvent is the message passed from a coordinator run to the
// dispatcher. The dispatcher is the only goroutine that mutates session rows,
// which keeps status+progress updates atomic and ordered.
type progressEvent struct {
	sessionID string
	status    model.Status
	progress  int
	step      string
	errMsg    string

	terminal bool
	artifact *pipeline.Artifact
	workflow *model.WorkflowMetadata
}

type researchUC struct {
	sessions   repository.SessionRepository
	activities repository.ActivityRepository
	tm         repository.TransactionManager
	coord      *pipeline.Coordinator
	pool       *worker.Pool
	hub        *fanout.Hub
	validate   *validator.Validate
	log        *zerolog.Logger

	persistRetries int
	persistBackoff time.Duration
	events         chan progressEvent
}

var _ ResearchUseCase = (*researchUC)(nil)

func NewResearchUseCase(
	sessions repository.SessionRepository,
	activities repository.ActivityRepository,
	tm repository.TransactionManager,
	coord *pipeline.Coordinator,
	pool *worker.Pool,
	hub *fanout.Hub,
	persistRetries int,
	log *zerolog.Logger,
) *researchUC {
	if persistRetries < 0 {
		persistRetries = 0
	}
	return &researchUC{
		sessions:       sessions,
		activities:     activities,
		tm:             tm,
		coord:          coord,
		pool:           pool,
		hub:            hub,
		validate:       validator.New(),
		log:            log,
		persistRetries: persistRetries,
		persistBackoff: 200 * time.Millisecond,
		events:         make(chan progressEvent, 256),
	}
}

// Run drains the progress event channel. It must be started once, in its own
// goroutine, before any session is submitted.
func (u *researchUC) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-u.events:
			u.apply(ctx, ev)
		}
	}
}

// Submit validates the request, creates a Pending session and schedules its
// pipeline on the worker pool. It returns as soon as the session row exists;
// it never waits for pipeline execution.
func (u *researchUC) Submit(ctx context.Context, req model.ResearchRequest) (*model.ResearchSession, error) {
	defer logging.TraceDuration(u.log, "ResearchUC.Submit")()

	applyDefaults(&req)
	if err := u.validate.Struct(req); err != nil {
		metrics.IncRejected("validation")
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, validationDetail(err))
	}

	sess := model.NewResearchSession(req)
	if err := u.sessions.Save(ctx, repository.NoTX, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	id := sess.ID
	if err := u.pool.Submit(func(taskCtx context.Context) error {
		u.execute(taskCtx, id)
		return nil
	}); err != nil {
		_ = u.sessions.Delete(ctx, repository.NoTX, id)
		metrics.IncRejected("queue_full")
		return nil, err
	}

	u.log.Info().Str("session_id", id).Str("topic", req.Topic).Str("format", string(req.OutputFormat)).Msg("research session submitted")
	out := *sess
	return &out, nil
}

// execute is the worker-pool task for one session.
func (u *researchUC) execute(ctx context.Context, id string) {
	ctx = logging.WithSessionID(ctx, id)
	l := logging.With(ctx, u.log)

	sess, err := u.sessions.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		// Deleted between submit and pickup.
		return
	}

	metrics.SessionStarted()
	defer metrics.SessionFinished()

	led := workflow.NewLedger(id)
	report := func(status model.Status, progress int, step string) {
		u.events <- progressEvent{sessionID: id, status: status, progress: progress, step: step}
	}

	start := time.Now()
	artifact, runErr := u.coord.Run(ctx, sess, led, report)

	if err := u.activities.SaveAll(context.Background(), repository.NoTX, led.Records()); err != nil {
		l.Error().Err(err).Msg("failed to persist activity records")
		if runErr == nil {
			runErr = fmt.Errorf("%w: %s", domain.ErrPersistence, err.Error())
		}
	}

	if runErr != nil {
		l.Error().Err(runErr).Dur("duration", time.Since(start)).Msg("research session failed")
		u.events <- progressEvent{
			sessionID: id,
			status:    model.StatusFailed,
			step:      "Research failed",
			errMsg:    runErr.Error(),
			terminal:  true,
			workflow:  led.Snapshot(),
		}
		return
	}

	l.Info().Dur("duration", time.Since(start)).Msg("research session completed")
	u.events <- progressEvent{
		sessionID: id,
		status:    model.StatusCompleted,
		progress:  100,
		step:      "Research completed",
		terminal:  true,
		artifact:  artifact,
	}
}

// apply is the single mutation point for session state. Status and progress
// are written together under the per-session lock, then the change is fanned
// out to observers. Store failures are retried a bounded number of times
// before the session is failed with a persistence reason.
func (u *researchUC) apply(ctx context.Context, ev progressEvent) {
	var update model.ProgressUpdate
	mutate := func(s *model.ResearchSession) error {
		if err := s.ApplyProgress(ev.status, ev.progress, ev.step); err != nil {
			return err
		}
		if ev.terminal {
			if ev.status == model.StatusCompleted && ev.artifact != nil {
				s.Result = ev.artifact.Result
				s.Workflow = ev.artifact.Workflow
			} else {
				s.ErrorMessage = ev.errMsg
				s.Workflow = ev.workflow
			}
		}
		update = s.Update()
		return nil
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = u.sessions.Mutate(ctx, ev.sessionID, mutate)
		if err == nil || !isPersistenceErr(err) || attempt >= u.persistRetries {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(u.persistBackoff):
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrSessionTerminal),
		errors.Is(err, domain.ErrInvalidArgument):
		// Session deleted, or a stale event raced a terminal transition.
		// Either way the event is dropped, never surfaced to the job.
		return
	default:
		// Store unavailable after all retries: fail the session best-effort
		// and tell whoever is still listening.
		u.log.Error().Err(err).Str("session_id", ev.sessionID).Msg("progress persistence failed")
		failMsg := domain.ErrPersistence.Error() + ": " + err.Error()
		// Failed freezes progress. The event's value is the last one reported;
		// if the fail-write lands, the row's frozen value wins.
		update = model.ProgressUpdate{
			SessionID:    ev.sessionID,
			Status:       model.StatusFailed,
			Progress:     ev.progress,
			CurrentStep:  "Persistence failure",
			ErrorMessage: failMsg,
		}
		_ = u.sessions.Mutate(ctx, ev.sessionID, func(s *model.ResearchSession) error {
			if aerr := s.ApplyProgress(model.StatusFailed, s.Progress, "Persistence failure"); aerr != nil {
				return aerr
			}
			s.ErrorMessage = failMsg
			update = s.Update()
			return nil
		})
		u.hub.Publish(ev.sessionID, update)
		u.hub.CloseSession(ev.sessionID)
		metrics.IncSession(string(model.StatusFailed))
		return
	}

	u.hub.Publish(ev.sessionID, update)
	if update.Status.Terminal() {
		metrics.IncSession(string(update.Status))
		u.hub.CloseSession(ev.sessionID)
	}
}

func (u *researchUC) Status(ctx context.Context, id string) (*model.ResearchSession, error) {
	defer logging.TraceDuration(u.log, "ResearchUC.Status")()
	return u.sessions.FindByID(ctx, repository.NoTX, id)
}

func (u *researchUC) Result(ctx context.Context, id string) (*model.ResearchResult, error) {
	defer logging.TraceDuration(u.log, "ResearchUC.Result")()

	sess, err := u.sessions.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusCompleted || sess.Result == nil {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrNotReady, sess.Status)
	}
	return sess.Result, nil
}

func (u *researchUC) Workflow(ctx context.Context, id string) (*model.WorkflowMetadata, error) {
	defer logging.TraceDuration(u.log, "ResearchUC.Workflow")()

	sess, err := u.sessions.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if sess.Workflow == nil {
		return nil, fmt.Errorf("%w: status is %s", domain.ErrNotReady, sess.Status)
	}
	return sess.Workflow, nil
}

func (u *researchUC) List(ctx context.Context, f repository.SessionFilter) ([]*model.ResearchSession, int, error) {
	defer logging.TraceDuration(u.log, "ResearchUC.List")()

	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return u.sessions.List(ctx, repository.NoTX, f)
}

// Delete removes the session and its ledger records. Live observers are
// closed first so nobody receives events for a row that no longer exists.
func (u *researchUC) Delete(ctx context.Context, id string) error {
	defer logging.TraceDuration(u.log, "ResearchUC.Delete")()

	u.hub.CloseSession(id)
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.sessions.Delete(ctx, tx, id); err != nil {
			return err
		}
		return u.activities.DeleteBySession(ctx, tx, id)
	})
}

func applyDefaults(req *model.ResearchRequest) {
	if req.Style == "" {
		req.Style = "educational"
	}
	if req.OutputFormat == model.FormatStructuredReport {
		if req.ReportType == "" {
			req.ReportType = "threat_assessment"
		}
		if req.Confidentiality == "" {
			req.Confidentiality = "internal"
		}
	}
	if req.OutputFormat == model.FormatLongForm && req.ChapterNumber <= 0 {
		req.ChapterNumber = 1
	}
}

// isPersistenceErr reports whether the error is a store failure worth
// retrying, as opposed to a domain-level rejection of the transition.
func isPersistenceErr(err error) bool {
	return !errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, domain.ErrSessionTerminal) &&
		!errors.Is(err, domain.ErrInvalidArgument)
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		return fmt.Sprintf("field %s failed %s validation", first.Field(), first.Tag())
	}
	return err.Error()
}
