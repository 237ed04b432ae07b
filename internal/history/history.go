// Package history keeps a local sqlite ledger of runs and the videos they submitted.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run kinds.
const (
	KindChannel = "channel"
	KindSingle  = "single"
	KindSubmit  = "submit"
)

const timeLayout = time.RFC3339Nano

// Run is one invocation of the pipeline.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Channel    string    `json:"channel,omitempty"`
	Target     int       `json:"target"`
	Filter     bool      `json:"filter"`
	Quality    string    `json:"quality"`
	Format     string    `json:"format"`
	Discovered int       `json:"discovered"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Total      int       `json:"total"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Submission is one video sent to MeTube during a run.
type Submission struct {
	RunID       string    `json:"run_id"`
	Seq         int       `json:"seq"`
	URL         string    `json:"url"`
	Quality     string    `json:"quality"`
	Succeeded   bool      `json:"succeeded"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

func Open(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// OpenStore opens the database at path and prepares its schema.
func OpenStore(path string) (*Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}
	return NewStore(db), nil
}

// Store records runs. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

// StartRun inserts r with a fresh id and start time and returns the stored run.
func (s *Store) StartRun(ctx context.Context, r Run) (Run, error) {
	r.ID = uuid.NewString()
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runs
        (id, kind, channel, target, filter, quality, format, started_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, nullIfEmpty(r.Channel), r.Target, r.Filter, nullIfEmpty(r.Quality), nullIfEmpty(r.Format), r.StartedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return r, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// FinishRun stores the final counts of r.
func (s *Store) FinishRun(ctx context.Context, r Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET
        discovered = ?, successful = ?, failed = ?, total = ?, error = ?, finished_at = ?
        WHERE id = ?`,
		r.Discovered, r.Successful, r.Failed, r.Total, nullIfEmpty(r.Error), r.FinishedAt.Format(timeLayout), r.ID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: unknown run %q", r.ID)
	}
	return nil
}

// AddSubmission records one submission of a run.
func (s *Store) AddSubmission(ctx context.Context, sub Submission) error {
	if strings.TrimSpace(sub.RunID) == "" || strings.TrimSpace(sub.URL) == "" {
		return errors.New("missing run id or url")
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO submissions
        (run_id, seq, url, quality, succeeded, error, submitted_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sub.RunID, sub.Seq, sub.URL, nullIfEmpty(sub.Quality), sub.Succeeded, nullIfEmpty(sub.Error), sub.SubmittedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id, kind, channel, target, filter, quality, format, discovered, successful, failed, total, error, started_at, finished_at
FROM runs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var (
			r                              Run
			channel, quality, format, rerr sql.NullString
			started                        string
			finished                       sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Kind, &channel, &r.Target, &r.Filter, &quality, &format,
			&r.Discovered, &r.Successful, &r.Failed, &r.Total, &rerr, &started, &finished); err != nil {
			return nil, err
		}
		r.Channel, r.Quality, r.Format, r.Error = channel.String, quality.String, format.String, rerr.String
		r.StartedAt, _ = time.Parse(timeLayout, started)
		if finished.Valid {
			r.FinishedAt, _ = time.Parse(timeLayout, finished.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Submissions returns the submissions of a run in order.
func (s *Store) Submissions(ctx context.Context, runID string) ([]Submission, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT run_id, seq, url, quality, succeeded, error, submitted_at
FROM submissions WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Submission
	for rows.Next() {
		var (
			sub          Submission
			quality, msg sql.NullString
			at           string
		)
		if err := rows.Scan(&sub.RunID, &sub.Seq, &sub.URL, &quality, &sub.Succeeded, &msg, &at); err != nil {
			return nil, err
		}
		sub.Quality, sub.Error = quality.String, msg.String
		sub.SubmittedAt, _ = time.Parse(timeLayout, at)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// SubmittedURLs returns the set of URLs that were accepted by MeTube in any run.
func (s *Store) SubmittedURLs(ctx context.Context) (map[string]struct{}, error) {
	urls := make(map[string]struct{})
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT url FROM submissions WHERE succeeded = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
