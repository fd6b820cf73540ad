package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"cyber-research-service/internal/domain"
	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*sessionRepo)(nil)

type sessionRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewSessionRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *sessionRepo {
	return &sessionRepo{pool: pool, tm: tm}
}

func (r *sessionRepo) Save(ctx context.Context, tx repository.Tx, s *model.ResearchSession) error {
	request, result, workflow, err := marshalSession(s)
	if err != nil {
		return err
	}

	const q = `
INSERT INTO research_sessions (id, status, progress, current_step, error_message, request, result, workflow, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  progress = EXCLUDED.progress,
  current_step = EXCLUDED.current_step,
  error_message = EXCLUDED.error_message,
  result = EXCLUDED.result,
  workflow = EXCLUDED.workflow,
  updated_at = EXCLUDED.updated_at;`

	_, err = execSQL(ctx, r.pool, tx, q,
		s.ID, string(s.Status), s.Progress, s.CurrentStep, s.ErrorMessage,
		request, result, workflow, s.CreatedAt, s.UpdatedAt)
	return err
}

func (r *sessionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ResearchSession, error) {
	const q = sessionColumns + ` WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSession(row)
}

// Mutate loads the row FOR UPDATE, applies fn and writes the row back, all in
// one transaction. Row-level locking means mutations of different sessions
// never wait on each other.
func (r *sessionRepo) Mutate(ctx context.Context, id string, fn func(s *model.ResearchSession) error) error {
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const q = sessionColumns + ` WHERE id = $1 FOR UPDATE;`
		row, err := pickRow(ctx, r.pool, tx, q, id)
		if err != nil {
			return err
		}
		sess, err := scanSession(row)
		if err != nil {
			return err
		}
		if err := fn(sess); err != nil {
			return err
		}
		return r.Save(ctx, tx, sess)
	})
}

func (r *sessionRepo) List(ctx context.Context, tx repository.Tx, f repository.SessionFilter) ([]*model.ResearchSession, int, error) {
	where := ""
	args := []interface{}{}
	if f.Status != "" {
		where = " WHERE status = $1"
		args = append(args, string(f.Status))
	}

	var total int
	countRow, err := pickRow(ctx, r.pool, tx, `SELECT COUNT(*) FROM research_sessions`+where+`;`, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, translateErr(err)
	}

	q := fmt.Sprintf("%s%s ORDER BY created_at DESC OFFSET $%d LIMIT $%d;",
		sessionColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Offset, f.Limit)

	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.ResearchSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sess)
	}
	return out, total, rows.Err()
}

func (r *sessionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	tag, err := execSQL(ctx, r.pool, tx, `DELETE FROM research_sessions WHERE id = $1;`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const sessionColumns = `
SELECT id, status, progress, current_step, error_message, request, result, workflow, created_at, updated_at
FROM research_sessions`

func marshalSession(s *model.ResearchSession) (request, result, workflow []byte, err error) {
	request, err = json.Marshal(s.Request)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal request: %w", err)
	}
	if s.Result != nil {
		result, err = json.Marshal(s.Result)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal result: %w", err)
		}
	}
	if s.Workflow != nil {
		workflow, err = json.Marshal(s.Workflow)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal workflow: %w", err)
		}
	}
	return request, result, workflow, nil
}

func scanSession(row pgx.Row) (*model.ResearchSession, error) {
	var (
		sess      model.ResearchSession
		statusStr string
		request   []byte
		result    []byte
		workflow  []byte
	)
	err := row.Scan(&sess.ID, &statusStr, &sess.Progress, &sess.CurrentStep, &sess.ErrorMessage,
		&request, &result, &workflow, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	sess.Status = model.Status(statusStr)
	if err := json.Unmarshal(request, &sess.Request); err != nil {
		return nil, fmt.Errorf("unmarshal request: %w", err)
	}
	if len(result) > 0 {
		sess.Result = &model.ResearchResult{}
		if err := json.Unmarshal(result, sess.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	if len(workflow) > 0 {
		sess.Workflow = &model.WorkflowMetadata{}
		if err := json.Unmarshal(workflow, sess.Workflow); err != nil {
			return nil, fmt.Errorf("unmarshal workflow: %w", err)
		}
	}
	return &sess, nil
}
