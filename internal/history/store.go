// Package history records per-document processing outcomes in a local SQLite
// database. It is an audit trail, not batch state: losing it never affects a
// running batch, and recording failures are logged and swallowed.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/qb-bastiaan/invoice-processor-app/constants"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS processing_history (
	id              TEXT PRIMARY KEY,
	file_name       TEXT NOT NULL,
	file_index      INTEGER NOT NULL,
	status          TEXT NOT NULL,
	output_filename TEXT,
	error_detail    TEXT,
	processed_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_processing_history_file ON processing_history(file_name);
`

// Entry is one recorded outcome.
type Entry struct {
	ID             string
	FileName       string
	FileIndex      int
	Status         constants.ProcessingStatus
	OutputFilename string
	ErrorDetail    string
	ProcessedAt    time.Time
}

// Store wraps the history database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts one outcome row.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_history (id, file_name, file_index, status, output_filename, error_detail, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.FileName, e.FileIndex, string(e.Status), e.OutputFilename, e.ErrorDetail,
		e.ProcessedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, file_index, status, output_filename, error_detail, processed_at
		 FROM processing_history ORDER BY processed_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var status, processedAt string
		var outputName, errorDetail sql.NullString
		if err := rows.Scan(&e.ID, &e.FileName, &e.FileIndex, &status, &outputName, &errorDetail, &processedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Status = constants.ProcessingStatus(status)
		e.OutputFilename = outputName.String
		e.ErrorDetail = errorDetail.String
		if t, err := time.Parse(time.RFC3339, processedAt); err == nil {
			e.ProcessedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
