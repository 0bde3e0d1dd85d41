// Package history persists summaries of generated interview reports in
// SQLite so completed sessions survive a restart even though live session
// state is in-process only.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Record is one generated report summary.
type Record struct {
	ID            int64
	SessionID     string
	QuestionCount int
	AnsweredCount int
	AverageScore  *float64
	DownloadName  string
	CreatedAt     time.Time
}

// Store wraps SQLite access for report history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY,
			session_id TEXT NOT NULL,
			question_count INTEGER NOT NULL,
			answered_count INTEGER NOT NULL,
			average_score REAL,
			download_name TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_session_id ON reports(session_id);`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores one report summary. The creation timestamp is taken at
// insertion time.
func (s *Store) Insert(ctx context.Context, rec Record) (int64, error) {
	createdAt := s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (session_id, question_count, answered_count, average_score, download_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.QuestionCount,
		rec.AnsweredCount,
		rec.AverageScore,
		rec.DownloadName,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRecent returns the newest report summaries, most recent first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question_count, answered_count, average_score, download_name, created_at
		 FROM reports ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var avg sql.NullFloat64
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.QuestionCount, &rec.AnsweredCount, &avg, &rec.DownloadName, &createdAt); err != nil {
			return nil, err
		}
		if avg.Valid {
			value := avg.Float64
			rec.AverageScore = &value
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = ts
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
