package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("not found")

// Status of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one pipeline invocation.
type Run struct {
	ID         string
	SourcePath string
	Status     Status
	FramesIn   int
	FramesKept int
	Scenes     int
	Category   string
	Error      string
	CreatedAt  time.Time
	// FinishedAt is zero while the run is in progress.
	FinishedAt time.Time
}

// Clip is one clip written by a run.
type Clip struct {
	RunID      string
	Index      int
	Path       string
	Start      string
	End        string
	StartFrame int
	EndFrame   int
	Frames     int
}

const runColumns = `id, source_path, status, frames_in, frames_kept, scenes, category, error, created_at, finished_at`

// CreateRun inserts run. A zero CreatedAt is set to now and an empty Status
// to StatusRunning.
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SourcePath, string(run.Status), run.FramesIn, run.FramesKept, run.Scenes,
		nullString(run.Category), nullString(run.Error), run.CreatedAt.UnixNano(), nullTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun stores the final counters and status of run. A zero FinishedAt
// is set to now.
func (s *Store) FinishRun(ctx context.Context, run *Run) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	res, err := s.conn.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, frames_in = ?, frames_kept = ?, scenes = ?, category = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, string(run.Status), run.FramesIn, run.FramesKept, run.Scenes,
		nullString(run.Category), nullString(run.Error), run.FinishedAt.UnixNano(), run.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", run.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, ErrNotFound)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 50.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// AddClips records clips for runID in a single transaction.
func (s *Store) AddClips(ctx context.Context, runID string, clips []Clip) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO clips (run_id, idx, path, start_tc, end_tc, start_frame, end_frame, frames)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range clips {
		if _, err := stmt.ExecContext(ctx, runID, c.Index, c.Path, c.Start, c.End,
			c.StartFrame, c.EndFrame, c.Frames); err != nil {
			return fmt.Errorf("insert clip %d of run %s: %w", c.Index, runID, err)
		}
	}
	return tx.Commit()
}

// Clips returns the clips of runID ordered by index.
func (s *Store) Clips(ctx context.Context, runID string) ([]Clip, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT run_id, idx, path, start_tc, end_tc, start_frame, end_frame, frames
		FROM clips WHERE run_id = ? ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []Clip
	for rows.Next() {
		var c Clip
		if err := rows.Scan(&c.RunID, &c.Index, &c.Path, &c.Start, &c.End,
			&c.StartFrame, &c.EndFrame, &c.Frames); err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                Run
		status           string
		category, errMsg sql.NullString
		created          int64
		finished         sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.SourcePath, &status, &r.FramesIn, &r.FramesKept, &r.Scenes,
		&category, &errMsg, &created, &finished); err != nil {
		return nil, err
	}
	r.Status = Status(status)
	r.Category = category.String
	r.Error = errMsg.String
	r.CreatedAt = time.Unix(0, created)
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64)
	}
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}
