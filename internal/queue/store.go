package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ripcord/internal/config"
	"ripcord/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "jobs.db")
	db, err := sql.Open("sqlite", dbPath)
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const jobColumns = `id, drive_id, device, disc_label, title_indexes, output_dir, status,
	progress_stage, progress_percent, progress_message, progress_title,
	error_message, output_files, request_id,
	created_at, updated_at, started_at, finished_at`

// Enqueue inserts a new pending job for a drive. It fails fast with
// ErrDriveUnavailable when the drive already has an active job; callers do
// not wait behind an occupied drive.
func (s *Store) Enqueue(ctx context.Context, job *Job) error {
	ctx = ensureContext(ctx)

	titles, err := json.Marshal(job.TitleIndexes)
	if err != nil {
		return fmt.Errorf("marshal title indexes: %w", err)
	}

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin enqueue tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var active int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM rip_jobs WHERE drive_id = ? AND status IN (?, ?, ?)`,
			job.DriveID, StatusPending, StatusReserving, StatusRunning,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("check active jobs: %w", err)
		}
		if active > 0 {
			return services.Wrap(services.ErrDriveUnavailable, "queue", "enqueue",
				fmt.Sprintf("drive %d already has an active job", job.DriveID), nil)
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`INSERT INTO rip_jobs (drive_id, device, disc_label, title_indexes, output_dir,
				status, request_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.DriveID, job.Device, job.DiscLabel, string(titles), job.OutputDir,
			StatusPending, job.RequestID,
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("job id: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit enqueue: %w", err)
		}

		job.ID = id
		job.Status = StatusPending
		job.CreatedAt = now
		job.UpdatedAt = now
		return nil
	})
}

// NextPending returns the oldest pending job for a drive, or nil when the
// drive has no pending work.
func (s *Store) NextPending(ctx context.Context, driveID int) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM rip_jobs
		 WHERE drive_id = ? AND status = ?
		 ORDER BY id ASC LIMIT 1`,
		driveID, StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return job, nil
}

// TransitionStatus moves a job from one status to another. The compare step
// runs inside the UPDATE so concurrent transitions cannot both win; a false
// return means the job was not in the expected state.
func (s *Store) TransitionStatus(ctx context.Context, id int64, from, to Status) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var (
		res sql.Result
		err error
	)
	switch to {
	case StatusRunning:
		res, err = s.execWithRetry(ctx,
			`UPDATE rip_jobs SET status = ?, started_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to, now, now, id, from)
	case StatusPending:
		// The only backward transition: a deferred drive reservation.
		res, err = s.execWithRetry(ctx,
			`UPDATE rip_jobs SET status = ?, progress_stage = '', progress_percent = 0,
				progress_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
			to, now, id, from)
	default:
		res, err = s.execWithRetry(ctx,
			`UPDATE rip_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to, now, id, from)
	}
	if err != nil {
		return false, fmt.Errorf("transition job %d %s -> %s: %w", id, from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// SetProgress records rip progress for a running job.
func (s *Store) SetProgress(ctx context.Context, id int64, stage string, percent float64, message string, titleIndex int) error {
	_, err := s.execWithRetry(ctx,
		`UPDATE rip_jobs SET progress_stage = ?, progress_percent = ?, progress_message = ?,
			progress_title = ?, updated_at = ? WHERE id = ?`,
		stage, percent, message, titleIndex,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a job with the files it produced.
func (s *Store) MarkCompleted(ctx context.Context, id int64, files []string) error {
	encoded, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal output files: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(ctx,
		`UPDATE rip_jobs SET status = ?, output_files = ?, progress_percent = 100,
			progress_stage = 'Complete', finished_at = ?, updated_at = ? WHERE id = ?`,
		StatusCompleted, string(encoded), now, now, id)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed finalizes a job with an error message. Files ripped before the
// failure are recorded so they are not orphaned silently.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string, files []string) error {
	if files == nil {
		files = []string{}
	}
	encoded, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("marshal output files: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.execWithRetry(ctx,
		`UPDATE rip_jobs SET status = ?, error_message = ?, output_files = ?,
			finished_at = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, message, string(encoded), now, now, id)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// FailInFlight marks every non-terminal job failed. Jobs do not survive a
// daemon restart; this runs once at startup so stale rows cannot be picked
// up as live work.
func (s *Store) FailInFlight(ctx context.Context, reason string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx,
		`UPDATE rip_jobs SET status = ?, error_message = ?, finished_at = ?, updated_at = ?
		 WHERE status IN (?, ?, ?)`,
		StatusFailed, reason, now, now,
		StatusPending, StatusReserving, StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("fail in-flight jobs: %w", err)
	}
	return res.RowsAffected()
}

// Retry puts a failed job back in the pending state so the executor picks it
// up again. The drive must not have another active job.
func (s *Store) Retry(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin retry tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var status Status
		var driveID int
		err = tx.QueryRowContext(ctx,
			`SELECT status, drive_id FROM rip_jobs WHERE id = ?`, id,
		).Scan(&status, &driveID)
		if errors.Is(err, sql.ErrNoRows) {
			return services.Wrap(services.ErrJobNotFound, "queue", "retry",
				fmt.Sprintf("job %d does not exist", id), nil)
		}
		if err != nil {
			return fmt.Errorf("load job %d: %w", id, err)
		}
		if status != StatusFailed {
			return services.Wrap(services.ErrValidation, "queue", "retry",
				fmt.Sprintf("job %d is %s; only failed jobs can be retried", id, status), nil)
		}

		var active int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM rip_jobs WHERE drive_id = ? AND status IN (?, ?, ?)`,
			driveID, StatusPending, StatusReserving, StatusRunning,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("check active jobs: %w", err)
		}
		if active > 0 {
			return services.Wrap(services.ErrDriveUnavailable, "queue", "retry",
				fmt.Sprintf("drive %d already has an active job", driveID), nil)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, err = tx.ExecContext(ctx,
			`UPDATE rip_jobs SET status = ?, error_message = NULL, output_files = '[]',
				progress_stage = '', progress_percent = 0, progress_message = NULL, progress_title = 0,
				started_at = NULL, finished_at = NULL, updated_at = ? WHERE id = ?`,
			StatusPending, now, id)
		if err != nil {
			return fmt.Errorf("reset job %d: %w", id, err)
		}

		return tx.Commit()
	})
}

// GetByID fetches a single job.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM rip_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrJobNotFound, "queue", "get",
			fmt.Sprintf("job %d does not exist", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// List returns jobs filtered by status, newest first. With no statuses it
// returns everything.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM rip_jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ActiveForDrive returns the drive's current non-terminal job, if any.
func (s *Store) ActiveForDrive(ctx context.Context, driveID int) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM rip_jobs
		 WHERE drive_id = ? AND status IN (?, ?, ?)
		 ORDER BY id ASC LIMIT 1`,
		driveID, StatusPending, StatusReserving, StatusRunning)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for drive %d: %w", driveID, err)
	}
	return job, nil
}

// Stats counts jobs by status.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(1) FROM rip_jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusReserving:
			stats.Reserving = count
		case StatusRunning:
			stats.Running = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// Clear removes terminal jobs. Active jobs are never deleted.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusCompleted, StatusFailed}
	}
	placeholders := make([]string, 0, len(statuses))
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		if !status.IsTerminal() {
			return 0, fmt.Errorf("refusing to clear active status %q", status)
		}
		placeholders = append(placeholders, "?")
		args = append(args, status)
	}
	res, err := s.execWithRetry(ctx,
		`DELETE FROM rip_jobs WHERE status IN (`+strings.Join(placeholders, ", ")+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job           Job
		titlesJSON    string
		filesJSON     string
		progressMsg   sql.NullString
		errorMsg      sql.NullString
		createdAtStr  string
		updatedAtStr  string
		startedAtStr  sql.NullString
		finishedAtStr sql.NullString
	)
	err := row.Scan(
		&job.ID, &job.DriveID, &job.Device, &job.DiscLabel, &titlesJSON, &job.OutputDir, &job.Status,
		&job.ProgressStage, &job.ProgressPercent, &progressMsg, &job.ProgressTitle,
		&errorMsg, &filesJSON, &job.RequestID,
		&createdAtStr, &updatedAtStr, &startedAtStr, &finishedAtStr,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(titlesJSON), &job.TitleIndexes); err != nil {
		return nil, fmt.Errorf("decode title indexes for job %d: %w", job.ID, err)
	}
	if err := json.Unmarshal([]byte(filesJSON), &job.OutputFiles); err != nil {
		return nil, fmt.Errorf("decode output files for job %d: %w", job.ID, err)
	}
	job.ProgressMessage = progressMsg.String
	job.ErrorMessage = errorMsg.String

	job.CreatedAt = parseTimestamp(createdAtStr)
	job.UpdatedAt = parseTimestamp(updatedAtStr)
	if startedAtStr.Valid {
		ts := parseTimestamp(startedAtStr.String)
		job.StartedAt = &ts
	}
	if finishedAtStr.Valid {
		ts := parseTimestamp(finishedAtStr.String)
		job.FinishedAt = &ts
	}
	return &job, nil
}

func parseTimestamp(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}
