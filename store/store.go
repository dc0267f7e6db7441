// Package store provides SQLite persistence for ytrss: resolved media URLs
// and the history of generation runs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/robertmeta/ytrss/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store manages the SQLite database.
type Store struct {
	db *sql.DB
}

// QueryOptions specifies how to query runs.
type QueryOptions struct {
	Limit     int
	Offset    int
	JobID     string
	SinceTime *int64 // Unix timestamp
}

// New creates a new Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every ":memory:" connection is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}

	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database tables and indexes.
func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS resolutions (
		video_id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		mime_type TEXT,
		size INTEGER DEFAULT 0,
		resolved_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		job_id TEXT NOT NULL,
		title TEXT,
		destination TEXT NOT NULL,
		items INTEGER DEFAULT 0,
		cached INTEGER DEFAULT 0,
		resolved INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_resolutions_resolved_at ON resolutions(resolved_at);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_runs_job_id ON runs(job_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveResolution inserts or replaces the resolution of a video.
func (s *Store) SaveResolution(r *model.Resolution) error {
	if r.VideoID == "" || r.URL == "" {
		return errors.New("resolution needs a video id and a url")
	}
	resolvedAt := r.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO resolutions (video_id, url, mime_type, size, resolved_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET url = excluded.url, mime_type = excluded.mime_type,
			size = excluded.size, resolved_at = excluded.resolved_at`,
		r.VideoID, r.URL, r.MimeType, r.Size, resolvedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save resolution: %w", err)
	}
	return nil
}

// GetResolution retrieves the resolution of a video.
func (s *Store) GetResolution(videoID string) (*model.Resolution, error) {
	r := &model.Resolution{}
	var mimeType sql.NullString
	var resolvedUnix int64

	err := s.db.QueryRow(
		"SELECT video_id, url, mime_type, size, resolved_at FROM resolutions WHERE video_id = ?",
		videoID,
	).Scan(&r.VideoID, &r.URL, &mimeType, &r.Size, &resolvedUnix)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get resolution: %w", err)
	}

	r.MimeType = mimeType.String
	r.ResolvedAt = unixToTime(resolvedUnix)
	return r, nil
}

// CountResolutions returns the number of stored resolutions.
func (s *Store) CountResolutions() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM resolutions").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count resolutions: %w", err)
	}
	return n, nil
}

// PruneResolutions deletes resolutions older than before and returns how many were removed.
func (s *Store) PruneResolutions(before time.Time) (int64, error) {
	result, err := s.db.Exec("DELETE FROM resolutions WHERE resolved_at < ?", before.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune resolutions: %w", err)
	}
	return result.RowsAffected()
}

// SaveRun inserts or updates a generation run.
func (s *Store) SaveRun(r *model.Run) error {
	if r.ID == "" {
		return errors.New("run id is required")
	}

	var finished sql.NullInt64
	if r.FinishedAt != nil {
		finished = sql.NullInt64{Int64: r.FinishedAt.Unix(), Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO runs (id, job_id, title, destination, items, cached, resolved, failed, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET job_id = excluded.job_id, title = excluded.title,
			destination = excluded.destination, items = excluded.items, cached = excluded.cached,
			resolved = excluded.resolved, failed = excluded.failed, error = excluded.error,
			started_at = excluded.started_at, finished_at = excluded.finished_at`,
		r.ID, r.JobID, r.Title, r.Destination, r.Items, r.Cached, r.Resolved, r.Failed, r.Error,
		r.StartedAt.Unix(), finished,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

const runColumns = "id, job_id, title, destination, items, cached, resolved, failed, error, started_at, finished_at"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*model.Run, error) {
	r := &model.Run{}
	var title, errText sql.NullString
	var startedUnix int64
	var finished sql.NullInt64

	err := row.Scan(&r.ID, &r.JobID, &title, &r.Destination, &r.Items, &r.Cached, &r.Resolved, &r.Failed,
		&errText, &startedUnix, &finished)
	if err != nil {
		return nil, err
	}

	r.Title = title.String
	r.Error = errText.String
	r.StartedAt = unixToTime(startedUnix)
	if finished.Valid {
		t := unixToTime(finished.Int64)
		r.FinishedAt = &t
	}
	return r, nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (*model.Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// GetRuns retrieves runs with optional filtering and pagination, newest first.
func (s *Store) GetRuns(opts QueryOptions) ([]*model.Run, error) {
	query := "SELECT " + runColumns + " FROM runs WHERE 1=1"
	args := []interface{}{}

	if opts.JobID != "" {
		query += " AND job_id = ?"
		args = append(args, opts.JobID)
	}

	if opts.SinceTime != nil {
		query += " AND started_at >= ?"
		args = append(args, *opts.SinceTime)
	}

	query += " ORDER BY started_at DESC, id"

	// SQLite needs a LIMIT before OFFSET
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	} else if opts.Offset > 0 {
		query += " LIMIT -1"
	}

	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	return s.queryRuns(query, args...)
}

// LatestRuns returns the most recent successful run of every job, ordered by job ID.
func (s *Store) LatestRuns() ([]*model.Run, error) {
	query := "SELECT " + runColumns + ` FROM runs r
		WHERE (error IS NULL OR error = '') AND finished_at IS NOT NULL
		AND started_at = (
			SELECT MAX(started_at) FROM runs r2
			WHERE r2.job_id = r.job_id AND (r2.error IS NULL OR r2.error = '') AND r2.finished_at IS NOT NULL
		)
		GROUP BY job_id
		ORDER BY job_id`
	return s.queryRuns(query)
}

func (s *Store) queryRuns(query string, args ...interface{}) ([]*model.Run, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// Helper to convert Unix timestamp to time.Time
func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}
