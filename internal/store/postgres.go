package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/freight-triage/internal/db"
	"github.com/sells-group/freight-triage/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"load_thread":   `SELECT id, state, messages, revision, clarification_rounds, last_decision, created_at, updated_at FROM threads WHERE id = $1`,
	"lock_thread":   `SELECT revision FROM threads WHERE id = $1 FOR UPDATE`,
	"insert_thread": `INSERT INTO threads (id, state, messages, revision, clarification_rounds, last_decision, complete, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"update_thread": `UPDATE threads SET state = $1, messages = $2, revision = $3, clarification_rounds = $4, last_decision = $5, complete = $6, updated_at = $7 WHERE id = $8`,
	"insert_event":  `INSERT INTO extraction_events (id, thread_id, message_id, version, source, payload, complete, missing, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"list_events":   `SELECT id, thread_id, message_id, version, source, payload, complete, missing, created_at FROM extraction_events WHERE thread_id = $1 ORDER BY version ASC, created_at ASC`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS threads (
	id                   TEXT PRIMARY KEY,
	state                JSONB NOT NULL,
	messages             JSONB NOT NULL DEFAULT '[]'::jsonb,
	revision             INTEGER NOT NULL DEFAULT 0,
	clarification_rounds INTEGER NOT NULL DEFAULT 0,
	last_decision        JSONB,
	complete             BOOLEAN NOT NULL DEFAULT false,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS extraction_events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	thread_id  TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
	message_id TEXT,
	version    INTEGER NOT NULL,
	source     TEXT,
	payload    JSONB,
	complete   BOOLEAN NOT NULL DEFAULT false,
	missing    JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_threads_complete ON threads(complete);
CREATE INDEX IF NOT EXISTS idx_threads_updated_at ON threads(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_extraction_events_thread_version ON extraction_events(thread_id, version);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) LoadThread(ctx context.Context, threadID string) (*model.Thread, error) {
	th, err := scanPgThread(s.pool.QueryRow(ctx,
		`SELECT id, state, messages, revision, clarification_rounds, last_decision, created_at, updated_at FROM threads WHERE id = $1`,
		threadID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: thread %s", threadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: load thread %s", threadID)
	}
	return th, nil
}

// SaveThread locks the thread row, compares its revision with
// expectedRevision and writes the new state in one transaction. Two
// writers creating the same thread race on the primary key; the loser
// gets ErrStaleState.
func (s *PostgresStore) SaveThread(ctx context.Context, thread *model.Thread, expectedRevision int) error {
	if err := checkAdvance(thread, expectedRevision); err != nil {
		return err
	}
	enc, err := encodeThread(thread)
	if err != nil {
		return err
	}

	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var stored int
		err := tx.QueryRow(ctx, `SELECT revision FROM threads WHERE id = $1 FOR UPDATE`, thread.ID).Scan(&stored)
		exists := true
		if errors.Is(err, pgx.ErrNoRows) {
			exists = false
		} else if err != nil {
			return eris.Wrapf(err, "postgres: lock thread %s", thread.ID)
		}
		if stored != expectedRevision {
			return eris.Wrapf(ErrStaleState, "postgres: thread %s at revision %d, expected %d", thread.ID, stored, expectedRevision)
		}

		if !exists {
			_, err = tx.Exec(ctx,
				`INSERT INTO threads (id, state, messages, revision, clarification_rounds, last_decision, complete, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				thread.ID, enc.state, enc.messages, thread.Revision, thread.ClarificationRounds,
				enc.decision, enc.complete, enc.createdAt, enc.updatedAt,
			)
			if isUniqueViolation(err) {
				return eris.Wrapf(ErrStaleState, "postgres: thread %s created concurrently", thread.ID)
			}
			return eris.Wrapf(err, "postgres: insert thread %s", thread.ID)
		}

		_, err = tx.Exec(ctx,
			`UPDATE threads SET state = $1, messages = $2, revision = $3, clarification_rounds = $4, last_decision = $5, complete = $6, updated_at = $7 WHERE id = $8`,
			enc.state, enc.messages, thread.Revision, thread.ClarificationRounds,
			enc.decision, enc.complete, enc.updatedAt, thread.ID,
		)
		return eris.Wrapf(err, "postgres: update thread %s", thread.ID)
	})
}

func (s *PostgresStore) ListThreads(ctx context.Context, filter ThreadFilter) ([]model.Thread, error) {
	query := `SELECT id, state, messages, revision, clarification_rounds, last_decision, created_at, updated_at FROM threads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Complete != nil {
		query += fmt.Sprintf(` AND complete = $%d`, argIdx)
		args = append(args, *filter.Complete)
		argIdx++
	}
	if !filter.UpdatedSince.IsZero() {
		query += fmt.Sprintf(` AND updated_at >= $%d`, argIdx)
		args = append(args, filter.UpdatedSince.UTC())
		argIdx++
	}
	query += ` ORDER BY updated_at DESC, id ASC`

	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limitOf(filter))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list threads")
	}
	defer rows.Close()

	var threads []model.Thread
	for rows.Next() {
		th, err := scanPgThread(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan thread")
		}
		threads = append(threads, *th)
	}
	return threads, eris.Wrap(rows.Err(), "postgres: list threads iterate")
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.ExtractionEvent) error {
	enc, err := encodeEvent(event)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO extraction_events (id, thread_id, message_id, version, source, payload, complete, missing, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.ThreadID, event.MessageID, event.Version, string(event.Source),
		enc.payload, event.Complete, enc.missing, event.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert event for thread %s", event.ThreadID)
}

func (s *PostgresStore) ListEvents(ctx context.Context, threadID string) ([]model.ExtractionEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, message_id, version, source, payload, complete, missing, created_at FROM extraction_events WHERE thread_id = $1 ORDER BY version ASC, created_at ASC`,
		threadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list events %s", threadID)
	}
	defer rows.Close()

	events := []model.ExtractionEvent{}
	for rows.Next() {
		var ev model.ExtractionEvent
		var messageID, source *string
		var payload, missing []byte
		if err := rows.Scan(&ev.ID, &ev.ThreadID, &messageID, &ev.Version, &source, &payload,
			&ev.Complete, &missing, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		if messageID != nil {
			ev.MessageID = *messageID
		}
		if source != nil {
			ev.Source = model.Source(*source)
		}
		if err := decodeEventJSON(&ev, payload, missing); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func scanPgThread(row pgx.Row) (*model.Thread, error) {
	var th model.Thread
	var state, messages, decision []byte

	if err := row.Scan(&th.ID, &state, &messages, &th.Revision, &th.ClarificationRounds, &decision, &th.CreatedAt, &th.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeThreadJSON(&th, state, messages, decision); err != nil {
		return nil, err
	}
	return &th, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
