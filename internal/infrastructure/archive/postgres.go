package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ output.SessionArchive = (*PostgresArchive)(nil)

const schema = `CREATE TABLE IF NOT EXISTS sessions (
	id          UUID PRIMARY KEY,
	video_id    TEXT NOT NULL,
	question    TEXT NOT NULL,
	reason      TEXT NOT NULL,
	answer      TEXT NOT NULL,
	confident   BOOLEAN NOT NULL,
	iterations  INTEGER NOT NULL,
	tool_calls  INTEGER NOT NULL,
	elapsed_ms  BIGINT NOT NULL,
	result      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresArchive stores sessions in the sessions table. The summary columns
// are for ad-hoc queries; result holds the complete SessionResult.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

func NewPostgresArchive(ctx context.Context, dsn string, maxConns int32) (*PostgresArchive, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("archive.NewPostgresArchive: parse config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive.NewPostgresArchive: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive.NewPostgresArchive: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive.NewPostgresArchive: schema: %w", err)
	}
	return &PostgresArchive{pool: pool}, nil
}

func (a *PostgresArchive) Save(ctx context.Context, r entity.SessionResult) error {
	id, err := uuid.Parse(r.SessionID)
	if err != nil {
		return fmt.Errorf("archive.PostgresArchive.Save: %w", &entity.ValidationError{Field: "session_id", Reason: err.Error()})
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("archive.PostgresArchive.Save: %w", err)
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO sessions (id, video_id, question, reason, answer, confident, iterations, tool_calls, elapsed_ms, result)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET
		   reason = EXCLUDED.reason, answer = EXCLUDED.answer, confident = EXCLUDED.confident,
		   iterations = EXCLUDED.iterations, tool_calls = EXCLUDED.tool_calls,
		   elapsed_ms = EXCLUDED.elapsed_ms, result = EXCLUDED.result`,
		id, r.VideoID, r.Question, string(r.Reason), r.Answer, r.Confident,
		r.Iterations, r.ToolCalls, r.Elapsed.Milliseconds(), doc,
	)
	if err != nil {
		return fmt.Errorf("archive.PostgresArchive.Save: %w", err)
	}
	return nil
}

func (a *PostgresArchive) Get(ctx context.Context, id string) (*entity.SessionResult, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("archive.PostgresArchive.Get: %w", &entity.ValidationError{Field: "session_id", Reason: err.Error()})
	}

	var doc []byte
	err = a.pool.QueryRow(ctx, `SELECT result FROM sessions WHERE id = $1`, parsed).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("archive.PostgresArchive.Get: session %s: %w", id, entity.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("archive.PostgresArchive.Get: %w", err)
	}

	var r entity.SessionResult
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("archive.PostgresArchive.Get: decode: %w", err)
	}
	return &r, nil
}

func (a *PostgresArchive) Close() error {
	a.pool.Close()
	return nil
}
