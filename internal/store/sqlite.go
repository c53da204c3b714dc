package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/freight-triage/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS threads (
	id                   TEXT PRIMARY KEY,
	state                TEXT NOT NULL,
	messages             TEXT NOT NULL DEFAULT '[]',
	revision             INTEGER NOT NULL DEFAULT 0,
	clarification_rounds INTEGER NOT NULL DEFAULT 0,
	last_decision        TEXT,
	complete             INTEGER NOT NULL DEFAULT 0,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS extraction_events (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	message_id TEXT,
	version    INTEGER NOT NULL,
	source     TEXT,
	payload    TEXT,
	complete   INTEGER NOT NULL DEFAULT 0,
	missing    TEXT NOT NULL DEFAULT '[]',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_threads_complete ON threads(complete);
CREATE INDEX IF NOT EXISTS idx_threads_updated_at ON threads(updated_at);
CREATE INDEX IF NOT EXISTS idx_extraction_events_thread_id ON extraction_events(thread_id, version);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const threadColumns = `id, state, messages, revision, clarification_rounds, last_decision, created_at, updated_at`

func (s *SQLiteStore) LoadThread(ctx context.Context, threadID string) (*model.Thread, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+threadColumns+` FROM threads WHERE id = ?`,
		threadID,
	)
	th, err := scanThread(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: thread %s", threadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: load thread %s", threadID)
	}
	return th, nil
}

func (s *SQLiteStore) SaveThread(ctx context.Context, thread *model.Thread, expectedRevision int) error {
	if err := checkAdvance(thread, expectedRevision); err != nil {
		return err
	}
	enc, err := encodeThread(thread)
	if err != nil {
		return err
	}

	var res sql.Result
	if expectedRevision == 0 {
		res, err = s.db.ExecContext(ctx,
			`INSERT INTO threads (id, state, messages, revision, clarification_rounds, last_decision, complete, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			thread.ID, string(enc.state), string(enc.messages), thread.Revision,
			thread.ClarificationRounds, enc.decisionString(), enc.complete, enc.createdAt, enc.updatedAt,
		)
	} else {
		res, err = s.db.ExecContext(ctx,
			`UPDATE threads SET state = ?, messages = ?, revision = ?, clarification_rounds = ?,
			 last_decision = ?, complete = ?, updated_at = ?
			 WHERE id = ? AND revision = ?`,
			string(enc.state), string(enc.messages), thread.Revision, thread.ClarificationRounds,
			enc.decisionString(), enc.complete, enc.updatedAt,
			thread.ID, expectedRevision,
		)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: save thread %s", thread.ID)
	}
	return checkSaved(res, thread.ID, expectedRevision)
}

func (s *SQLiteStore) ListThreads(ctx context.Context, filter ThreadFilter) ([]model.Thread, error) {
	query := `SELECT ` + threadColumns + ` FROM threads WHERE 1=1`
	var args []any

	if filter.Complete != nil {
		query += ` AND complete = ?`
		args = append(args, *filter.Complete)
	}
	if !filter.UpdatedSince.IsZero() {
		query += ` AND updated_at >= ?`
		args = append(args, filter.UpdatedSince.UTC())
	}
	query += ` ORDER BY updated_at DESC, id ASC LIMIT ?`
	args = append(args, limitOf(filter))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list threads")
	}
	defer rows.Close()

	var threads []model.Thread
	for rows.Next() {
		th, err := scanThread(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan thread")
		}
		threads = append(threads, *th)
	}
	return threads, eris.Wrap(rows.Err(), "sqlite: list threads iterate")
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, event *model.ExtractionEvent) error {
	enc, err := encodeEvent(event)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_events (id, thread_id, message_id, version, source, payload, complete, missing, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.ThreadID, event.MessageID, event.Version, string(event.Source),
		enc.payloadString(), event.Complete, string(enc.missing), event.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert event for thread %s", event.ThreadID)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, threadID string) ([]model.ExtractionEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, message_id, version, source, payload, complete, missing, created_at
		 FROM extraction_events WHERE thread_id = ? ORDER BY version ASC, created_at ASC`,
		threadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list events %s", threadID)
	}
	defer rows.Close()

	events := []model.ExtractionEvent{}
	for rows.Next() {
		var ev model.ExtractionEvent
		var messageID, source, payload sql.NullString
		var missing string
		if err := rows.Scan(&ev.ID, &ev.ThreadID, &messageID, &ev.Version, &source, &payload,
			&ev.Complete, &missing, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		ev.MessageID = messageID.String
		ev.Source = model.Source(source.String)
		if err := decodeEventJSON(&ev, []byte(payload.String), []byte(missing)); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

// helpers

// encodedThread holds the JSON columns of a thread row.
type encodedThread struct {
	state     []byte
	messages  []byte
	decision  []byte
	complete  bool
	createdAt time.Time
	updatedAt time.Time
}

func (e encodedThread) decisionString() any {
	if e.decision == nil {
		return nil
	}
	return string(e.decision)
}

func encodeThread(thread *model.Thread) (encodedThread, error) {
	now := time.Now().UTC()
	enc := encodedThread{
		complete:  lastComplete(thread),
		createdAt: thread.CreatedAt.UTC(),
		updatedAt: thread.UpdatedAt.UTC(),
	}
	if thread.CreatedAt.IsZero() {
		enc.createdAt = now
	}
	if thread.UpdatedAt.IsZero() {
		enc.updatedAt = now
	}

	var err error
	if enc.state, err = json.Marshal(thread.State); err != nil {
		return enc, eris.Wrap(err, "store: marshal state")
	}
	messages := thread.Messages
	if messages == nil {
		messages = []model.Message{}
	}
	if enc.messages, err = json.Marshal(messages); err != nil {
		return enc, eris.Wrap(err, "store: marshal messages")
	}
	if thread.LastDecision != nil {
		if enc.decision, err = json.Marshal(thread.LastDecision); err != nil {
			return enc, eris.Wrap(err, "store: marshal decision")
		}
	}
	return enc, nil
}

// encodedEvent holds the JSON columns of an event row.
type encodedEvent struct {
	payload []byte
	missing []byte
}

func (e encodedEvent) payloadString() any {
	if e.payload == nil {
		return nil
	}
	return string(e.payload)
}

// encodeEvent validates event, assigns its ID and timestamp when unset,
// and marshals its JSON columns.
func encodeEvent(event *model.ExtractionEvent) (encodedEvent, error) {
	var enc encodedEvent
	if event == nil || event.ThreadID == "" {
		return enc, eris.New("store: event thread id is required")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var err error
	if event.Payload != nil {
		if enc.payload, err = json.Marshal(event.Payload); err != nil {
			return enc, eris.Wrap(err, "store: marshal payload")
		}
	}
	missing := event.Missing
	if missing == nil {
		missing = []string{}
	}
	if enc.missing, err = json.Marshal(missing); err != nil {
		return enc, eris.Wrap(err, "store: marshal missing")
	}
	return enc, nil
}

func decodeEventJSON(ev *model.ExtractionEvent, payload, missing []byte) error {
	if len(payload) > 0 {
		ev.Payload = &model.Extraction{}
		if err := json.Unmarshal(payload, ev.Payload); err != nil {
			return eris.Wrap(err, "store: unmarshal payload")
		}
	}
	if len(missing) > 0 {
		if err := json.Unmarshal(missing, &ev.Missing); err != nil {
			return eris.Wrap(err, "store: unmarshal missing")
		}
	}
	return nil
}

func decodeThreadJSON(th *model.Thread, state, messages, decision []byte) error {
	if err := json.Unmarshal(state, &th.State); err != nil {
		return eris.Wrap(err, "store: unmarshal state")
	}
	if len(messages) > 0 {
		if err := json.Unmarshal(messages, &th.Messages); err != nil {
			return eris.Wrap(err, "store: unmarshal messages")
		}
	}
	if len(decision) > 0 {
		th.LastDecision = &model.Decision{}
		if err := json.Unmarshal(decision, th.LastDecision); err != nil {
			return eris.Wrap(err, "store: unmarshal decision")
		}
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanThread(row scannable) (*model.Thread, error) {
	var th model.Thread
	var state, messages string
	var decision sql.NullString

	if err := row.Scan(&th.ID, &state, &messages, &th.Revision, &th.ClarificationRounds, &decision, &th.CreatedAt, &th.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeThreadJSON(&th, []byte(state), []byte(messages), []byte(decision.String)); err != nil {
		return nil, err
	}
	return &th, nil
}

func checkSaved(res sql.Result, threadID string, expectedRevision int) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrStaleState, "thread %s no longer at revision %d", threadID, expectedRevision)
	}
	return nil
}
