// Package store persists analysis response envelopes in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/joelkehle/legalbrief/internal/analysis"
)

var ErrNotFound = errors.New("store: analysis not found")

const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS analyses (
	analysis_id    TEXT PRIMARY KEY,
	document_type  TEXT NOT NULL DEFAULT '',
	language       TEXT NOT NULL DEFAULT '',
	level          TEXT NOT NULL DEFAULT '',
	clause_count   INTEGER NOT NULL DEFAULT 0,
	risk_count     INTEGER NOT NULL DEFAULT 0,
	chunks_total   INTEGER NOT NULL DEFAULT 0,
	chunks_dropped INTEGER NOT NULL DEFAULT 0,
	model          TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	envelope       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS analyses_created_at ON analyses (created_at DESC);
`

// Summary is the list view of a stored analysis.
type Summary struct {
	ID            string    `db:"analysis_id" json:"id"`
	DocumentType  string    `db:"document_type" json:"document_type"`
	Language      string    `db:"language" json:"language"`
	Level         string    `db:"level" json:"simplification_level"`
	ClauseCount   int       `db:"clause_count" json:"clause_count"`
	RiskCount     int       `db:"risk_count" json:"risk_count"`
	ChunksTotal   int       `db:"chunks_total" json:"chunks_total"`
	ChunksDropped int       `db:"chunks_dropped" json:"chunks_dropped"`
	Model         string    `db:"model" json:"model"`
	CreatedAt     time.Time `db:"-" json:"created_at"`
	CreatedAtRaw  string    `db:"created_at" json:"-"`
}

type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: create schema")
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save writes env, replacing any earlier envelope with the same analysis ID.
func (s *SQLiteStore) Save(ctx context.Context, env analysis.ResponseEnvelope) error {
	id := strings.TrimSpace(env.Analysis.ID)
	if id == "" {
		return eris.New("store: analysis id is required")
	}
	body, err := json.Marshal(env)
	if err != nil {
		return eris.Wrap(err, "store: marshal envelope")
	}
	createdAt := env.Metadata.CompletedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO analyses
		(analysis_id, document_type, language, level, clause_count, risk_count, chunks_total, chunks_dropped, model, created_at, envelope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		env.Analysis.DocumentType,
		string(env.Metadata.Language),
		string(env.Metadata.Level),
		len(env.Analysis.Clauses),
		len(env.Analysis.Risks),
		env.Metadata.ChunksTotal,
		env.Metadata.ChunksDropped,
		env.Metadata.Model,
		timeToString(createdAt),
		string(body),
	)
	if err != nil {
		return eris.Wrapf(err, "store: save analysis %s", id)
	}
	return nil
}

// Get loads a stored envelope. The report markdown is rebuilt from the
// stored analysis so older rows pick up report changes.
func (s *SQLiteStore) Get(ctx context.Context, id string) (analysis.ResponseEnvelope, error) {
	var body string
	err := s.db.GetContext(ctx, &body, "SELECT envelope FROM analyses WHERE analysis_id = ?", strings.TrimSpace(id))
	if errors.Is(err, sql.ErrNoRows) {
		return analysis.ResponseEnvelope{}, ErrNotFound
	}
	if err != nil {
		return analysis.ResponseEnvelope{}, eris.Wrapf(err, "store: get analysis %s", id)
	}
	env, err := analysis.DecodeResponseEnvelope([]byte(body))
	if err != nil {
		return analysis.ResponseEnvelope{}, eris.Wrapf(err, "store: decode analysis %s", id)
	}
	return env, nil
}

// List returns the most recent analyses first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	var rows []Summary
	err := s.db.SelectContext(ctx, &rows, `SELECT analysis_id, document_type, language, level, clause_count,
		risk_count, chunks_total, chunks_dropped, model, created_at
		FROM analyses ORDER BY created_at DESC, analysis_id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list analyses")
	}
	for i := range rows {
		rows[i].CreatedAt, _ = time.Parse(timeLayout, rows[i].CreatedAtRaw)
	}
	if rows == nil {
		rows = []Summary{}
	}
	return rows, nil
}

// Delete removes one analysis. Deleting a missing ID returns ErrNotFound.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM analyses WHERE analysis_id = ?", strings.TrimSpace(id))
	if err != nil {
		return eris.Wrapf(err, "store: delete analysis %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "store: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func timeToString(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
