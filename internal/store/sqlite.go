// Package store persists disambiguation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/toporag/internal/model"
	"github.com/ppiankov/toporag/internal/pipeline"
)

// SQLite stores corpus runs and per-toponym results
type SQLite struct {
	db *sql.DB
}

// Run summarizes one stored run
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Documents     int
	Errors        int
	TotalToponyms int
	Selected      int
}

// Result is one stored toponym decision
type Result struct {
	RunID                string
	DocumentID           string
	Toponym              string
	MentionCount         int
	SelectedID           string // Empty when nothing was selected
	SelectedName         string
	FeatureClass         string
	Confidence           model.Tier
	Reason               model.Reason
	Justification        string
	HasMultipleReferents bool
}

// Query filters stored results; empty fields match everything
type Query struct {
	RunID      string
	DocumentID string
	Toponym    string
	Reason     model.Reason
	Limit      int
}

// NewSQLite opens (creating if needed) the database at path. ":memory:"
// opens a private in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		documents INTEGER NOT NULL DEFAULT 0,
		errors INTEGER NOT NULL DEFAULT 0,
		total_toponyms INTEGER NOT NULL DEFAULT 0,
		selected INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		toponym TEXT NOT NULL,
		mention_count INTEGER NOT NULL,
		selected_id TEXT,
		selected_name TEXT,
		feature_class TEXT,
		confidence TEXT NOT NULL,
		reason TEXT NOT NULL,
		justification TEXT,
		multi_referent INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,              -- Full result as JSON
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE,
		UNIQUE(run_id, document_id, toponym)
	);

	CREATE INDEX IF NOT EXISTS idx_results_toponym ON results(toponym);
	CREATE INDEX IF NOT EXISTS idx_results_reason ON results(reason);
	CREATE INDEX IF NOT EXISTS idx_results_document ON results(document_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveRun stores a corpus run and every result it holds in one transaction.
// Saving the same run again replaces it.
func (s *SQLite) SaveRun(ctx context.Context, report *pipeline.CorpusReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, report.RunID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, documents, errors, total_toponyms, selected)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, report.RunID, report.StartedAt.UTC().Format(time.RFC3339Nano), report.FinishedAt.UTC().Format(time.RFC3339Nano),
		len(report.Documents), len(report.Errors), report.TotalToponyms, report.Selected)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results (run_id, document_id, toponym, mention_count, selected_id, selected_name,
		                     feature_class, confidence, reason, justification, multi_referent, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range report.Documents {
		for _, r := range doc.Results {
			payload, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode result %s/%s: %w", doc.DocumentID, r.Toponym, err)
			}
			var selID, selName, class sql.NullString
			if r.Selected != nil {
				selID = sql.NullString{String: r.Selected.ID, Valid: true}
				selName = sql.NullString{String: r.Selected.Name, Valid: true}
				class = sql.NullString{String: r.Selected.FeatureClass, Valid: true}
			}
			_, err = stmt.ExecContext(ctx, report.RunID, doc.DocumentID, r.Toponym, r.MentionCount,
				selID, selName, class, r.Confidence.String(), string(r.Reason), r.Justification,
				boolToInt(r.HasMultipleReferents), string(payload))
			if err != nil {
				return fmt.Errorf("insert result %s/%s: %w", doc.DocumentID, r.Toponym, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs lists stored runs, newest first
func (s *SQLite) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, documents, errors, total_toponyms, selected
		FROM runs ORDER BY started_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Documents, &r.Errors, &r.TotalToponyms, &r.Selected); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Results returns stored results matching q ordered by run, document and toponym
func (s *SQLite) Results(ctx context.Context, q Query) ([]Result, error) {
	var where []string
	var args []any
	if q.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, q.RunID)
	}
	if q.DocumentID != "" {
		where = append(where, "document_id = ?")
		args = append(args, q.DocumentID)
	}
	if q.Toponym != "" {
		where = append(where, "toponym = ? COLLATE NOCASE")
		args = append(args, q.Toponym)
	}
	if q.Reason != "" {
		where = append(where, "reason = ?")
		args = append(args, string(q.Reason))
	}

	query := `SELECT run_id, document_id, toponym, mention_count, selected_id, selected_name,
		feature_class, confidence, reason, justification, multi_referent FROM results`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY run_id, document_id, toponym"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Result
	for rows.Next() {
		var r Result
		var selID, selName, class, justification sql.NullString
		var tier, reason string
		var multi int
		if err := rows.Scan(&r.RunID, &r.DocumentID, &r.Toponym, &r.MentionCount, &selID, &selName,
			&class, &tier, &reason, &justification, &multi); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.SelectedID = selID.String
		r.SelectedName = selName.String
		r.FeatureClass = class.String
		r.Justification = justification.String
		r.Reason = model.Reason(reason)
		r.HasMultipleReferents = multi != 0
		if t, err := model.ParseTier(tier); err == nil {
			r.Confidence = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Result loads the full stored result for one toponym of one document
func (s *SQLite) Result(ctx context.Context, runID, documentID, toponym string) (*model.DisambiguationResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM results WHERE run_id = ? AND document_id = ? AND toponym = ?
	`, runID, documentID, toponym).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("result not found: %s/%s/%s", runID, documentID, toponym)
	}
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}

	var r model.DisambiguationResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}

// Close closes the database
func (s *SQLite) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
