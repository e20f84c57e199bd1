package ledger

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset history)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// BeginRun inserts run in the running state. StartedAt defaults to now.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.ID == "" || run.SourcePath == "" {
		return errors.New("begin run: id and source path are required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source_path, status, backend, language, started_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.SourcePath,
		StatusRunning,
		nullableString(run.Backend),
		nullableString(run.Language),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordChunk stores or replaces the outcome of one chunk.
func (s *Store) RecordChunk(ctx context.Context, runID string, chunk Chunk) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO chunks (
            run_id, chunk_index, path, offset_ms, duration_ms, ok,
            segments, elapsed_ms, error_kind, error_message
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		chunk.Index,
		chunk.Path,
		chunk.Offset.Milliseconds(),
		chunk.Duration.Milliseconds(),
		boolToInt(chunk.OK),
		chunk.Segments,
		chunk.Elapsed.Milliseconds(),
		nullableString(chunk.ErrorKind),
		nullableString(chunk.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("record chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// FinishRun closes a run with its outcome.
func (s *Store) FinishRun(ctx context.Context, runID string, outcome Outcome) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs
         SET status = ?, strategy = ?, chunk_count = ?, succeeded = ?, failed = ?,
             output_path = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		outcome.Status,
		nullableString(outcome.Strategy),
		outcome.ChunkCount,
		outcome.Succeeded,
		outcome.Failed,
		nullableString(outcome.OutputPath),
		nullableString(outcome.ErrorMessage),
		time.Now().UTC().Format(time.RFC3339Nano),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// MarkInterrupted closes runs left in the running state by a process that
// died. Callers must hold the run lock so no live run is affected.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE status = ?`,
		StatusInterrupted,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

const runColumns = "id, source_path, status, backend, language, strategy, chunk_count, succeeded, failed, output_path, error_message, started_at, finished_at"

// GetRun fetches one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Chunks returns the recorded chunks of a run in ordinal order.
func (s *Store) Chunks(ctx context.Context, runID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chunk_index, path, offset_ms, duration_ms, ok, segments, elapsed_ms, error_kind, error_message
         FROM chunks WHERE run_id = ? ORDER BY chunk_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c                            Chunk
			offsetMs, durationMs, elapse int64
			ok                           int
			kind, message                sql.NullString
		)
		if err := rows.Scan(&c.Index, &c.Path, &offsetMs, &durationMs, &ok, &c.Segments, &elapse, &kind, &message); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.Offset = time.Duration(offsetMs) * time.Millisecond
		c.Duration = time.Duration(durationMs) * time.Millisecond
		c.Elapsed = time.Duration(elapse) * time.Millisecond
		c.OK = ok != 0
		c.ErrorKind = kind.String
		c.ErrorMessage = message.String
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
