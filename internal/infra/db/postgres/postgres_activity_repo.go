package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"cyber-research-service/internal/domain/model"
	"cyber-research-service/internal/domain/ports/repository"
)

var _ repository.ActivityRepository = (*activityRepo)(nil)

type activityRepo struct {
	pool *pgxpool.Pool
}

func NewActivityRepo(pool *pgxpool.Pool) *activityRepo {
	return &activityRepo{pool: pool}
}

func (r *activityRepo) SaveAll(ctx context.Context, tx repository.Tx, records []model.ActivityRecord) error {
	const q = `
INSERT INTO activity_records (id, session_id, expert_name, expert_type, step_name, step_order, status,
                              input, output, sources, start_time, end_time, duration_ms, error_message, retry_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  output = EXCLUDED.output,
  sources = EXCLUDED.sources,
  end_time = EXCLUDED.end_time,
  duration_ms = EXCLUDED.duration_ms,
  error_message = EXCLUDED.error_message,
  retry_count = EXCLUDED.retry_count;`

	for _, rec := range records {
		input, err := json.Marshal(rec.Input)
		if err != nil {
			return fmt.Errorf("marshal input: %w", err)
		}
		output, err := json.Marshal(rec.Output)
		if err != nil {
			return fmt.Errorf("marshal output: %w", err)
		}
		sources, err := json.Marshal(rec.Sources)
		if err != nil {
			return fmt.Errorf("marshal sources: %w", err)
		}
		var endTime interface{}
		if !rec.EndTime.IsZero() {
			endTime = rec.EndTime
		}
		_, err = execSQL(ctx, r.pool, tx, q,
			rec.ID, rec.SessionID, rec.ExpertName, rec.ExpertType, rec.StepName, rec.StepOrder, string(rec.Status),
			input, output, sources, rec.StartTime, endTime, rec.Duration.Milliseconds(), rec.ErrorMessage, rec.RetryCount)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *activityRepo) FindBySession(ctx context.Context, tx repository.Tx, sessionID string) ([]model.ActivityRecord, error) {
	const q = `
SELECT id, session_id, expert_name, expert_type, step_name, step_order, status,
       input, output, sources, start_time, end_time, duration_ms, error_message, retry_count
FROM activity_records
WHERE session_id = $1
ORDER BY step_order;`

	rows, err := queryRows(ctx, r.pool, tx, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ActivityRecord
	for rows.Next() {
		var (
			rec        model.ActivityRecord
			statusStr  string
			input      []byte
			output     []byte
			sources    []byte
			endTime    *time.Time
			durationMS int64
		)
		err := rows.Scan(&rec.ID, &rec.SessionID, &rec.ExpertName, &rec.ExpertType, &rec.StepName, &rec.StepOrder, &statusStr,
			&input, &output, &sources, &rec.StartTime, &endTime, &durationMS, &rec.ErrorMessage, &rec.RetryCount)
		if err != nil {
			return nil, translateErr(err)
		}
		rec.Status = model.ActivityStatus(statusStr)
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if endTime != nil {
			rec.EndTime = *endTime
		}
		if len(input) > 0 {
			if err := json.Unmarshal(input, &rec.Input); err != nil {
				return nil, fmt.Errorf("unmarshal input: %w", err)
			}
		}
		if len(output) > 0 {
			if err := json.Unmarshal(output, &rec.Output); err != nil {
				return nil, fmt.Errorf("unmarshal output: %w", err)
			}
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &rec.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *activityRepo) DeleteBySession(ctx context.Context, tx repository.Tx, sessionID string) error {
	_, err := execSQL(ctx, r.pool, tx, `DELETE FROM activity_records WHERE session_id = $1;`, sessionID)
	return err
}
