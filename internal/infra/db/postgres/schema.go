package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS research_sessions (
    id            UUID PRIMARY KEY,
    status        TEXT NOT NULL,
    progress      INT NOT NULL DEFAULT 0,
    current_step  TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    request       JSONB NOT NULL,
    result        JSONB,
    workflow      JSONB,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_research_sessions_status
    ON research_sessions (status, created_at DESC);

CREATE TABLE IF NOT EXISTS activity_records (
    id            TEXT PRIMARY KEY,
    session_id    UUID NOT NULL,
    expert_name   TEXT NOT NULL,
    expert_type   TEXT NOT NULL,
    step_name     TEXT NOT NULL,
    step_order    INT NOT NULL,
    status        TEXT NOT NULL,
    input         JSONB,
    output        JSONB,
    sources       JSONB,
    start_time    TIMESTAMPTZ NOT NULL,
    end_time      TIMESTAMPTZ,
    duration_ms   BIGINT NOT NULL DEFAULT 0,
    error_message TEXT NOT NULL DEFAULT '',
    retry_count   INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_activity_records_session
    ON activity_records (session_id, step_order);
`

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL)
	return err
}
