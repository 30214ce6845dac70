package botfacade

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ripcord/internal/config"
	"ripcord/internal/drives"
	"ripcord/internal/inspection"
	"ripcord/internal/logging"
	"ripcord/internal/queue"
	"ripcord/internal/services"
)

// Inspector is the disc inventory surface the façade depends on.
type Inspector interface {
	Inspect(ctx context.Context, driveID int, device string) (*inspection.Snapshot, error)
	Latest(driveID int) (*inspection.Snapshot, bool)
}

// Canceler stops jobs. The executor satisfies this.
type Canceler interface {
	Cancel(ctx context.Context, jobID int64) error
}

// Facade ties drive, inspection, and queue state into user-facing
// operations.
type Facade struct {
	cfg       *config.Config
	registry  *drives.Registry
	inspector Inspector
	store     *queue.Store
	canceler  Canceler
	logger    *slog.Logger
}

// New builds the command façade.
func New(cfg *config.Config, registry *drives.Registry, inspector Inspector, store *queue.Store, canceler Canceler, logger *slog.Logger) *Facade {
	return &Facade{
		cfg:       cfg,
		registry:  registry,
		inspector: inspector,
		store:     store,
		canceler:  canceler,
		logger:    logging.NewComponentLogger(logger, "facade"),
	}
}

// ListDrives re-enumerates attached drives and returns them sorted by id.
func (f *Facade) ListDrives(ctx context.Context) ([]drives.Drive, error) {
	if _, err := f.registry.Refresh(ctx); err != nil {
		return nil, err
	}
	return f.registry.List(), nil
}

// ListTitles inspects the disc in a drive and returns the title inventory.
// An empty or absent disc yields a snapshot with no titles, not an error.
func (f *Facade) ListTitles(ctx context.Context, driveID int) (*inspection.Snapshot, error) {
	drive, ok := f.registry.Get(driveID)
	if !ok {
		return nil, services.Wrap(services.ErrDriveNotFound, "facade", "titles",
			fmt.Sprintf("no drive with id %d", driveID), nil)
	}
	if drive.State == drives.StateOffline {
		return nil, services.Wrap(services.ErrDriveUnavailable, "facade", "titles",
			fmt.Sprintf("drive %d is offline", driveID), nil)
	}

	snap, err := f.inspector.Inspect(ctx, driveID, drive.Device)
	if err != nil {
		return nil, err
	}
	if snap.DiscLabel != "" {
		f.registry.SetDiscLabel(driveID, snap.DiscLabel)
	}
	return snap, nil
}

// RequestRip validates a title selection against the drive's latest disc
// snapshot and enqueues a job. A non-empty outputDir overrides the configured
// output directory as the destination base. Validation failures never touch
// the queue.
func (f *Facade) RequestRip(ctx context.Context, driveID int, titleIndexes []int, outputDir string) (*queue.Job, error) {
	drive, ok := f.registry.Get(driveID)
	if !ok {
		return nil, services.Wrap(services.ErrDriveNotFound, "facade", "rip",
			fmt.Sprintf("no drive with id %d", driveID), nil)
	}
	switch drive.State {
	case drives.StateOffline:
		return nil, services.Wrap(services.ErrDriveUnavailable, "facade", "rip",
			fmt.Sprintf("drive %d is offline", driveID), nil)
	case drives.StateBusy:
		return nil, services.Wrap(services.ErrDriveUnavailable, "facade", "rip",
			fmt.Sprintf("drive %d is ripping another disc", driveID), nil)
	}

	if len(titleIndexes) == 0 {
		return nil, services.Wrap(services.ErrValidation, "facade", "rip",
			"no titles selected", nil)
	}
	seen := make(map[int]struct{}, len(titleIndexes))
	for _, index := range titleIndexes {
		if index < 0 {
			return nil, services.Wrap(services.ErrValidation, "facade", "rip",
				fmt.Sprintf("title index %d is invalid", index), nil)
		}
		if _, dup := seen[index]; dup {
			return nil, services.Wrap(services.ErrValidation, "facade", "rip",
				fmt.Sprintf("title %d selected twice", index), nil)
		}
		seen[index] = struct{}{}
	}

	baseDir := f.cfg.Paths.OutputDir
	if trimmed := strings.TrimSpace(outputDir); trimmed != "" {
		expanded, err := config.ExpandPath(trimmed)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "facade", "rip",
				fmt.Sprintf("invalid output directory %q", outputDir), err)
		}
		baseDir = expanded
	}

	snap, ok := f.inspector.Latest(driveID)
	if !ok {
		var err error
		snap, err = f.inspector.Inspect(ctx, driveID, drive.Device)
		if err != nil {
			return nil, err
		}
	}
	if len(snap.Titles) == 0 {
		return nil, services.Wrap(services.ErrNoDisc, "facade", "rip",
			fmt.Sprintf("no rippable disc in drive %d", driveID), nil)
	}
	for _, index := range titleIndexes {
		if !snap.HasTitle(index) {
			return nil, services.Wrap(services.ErrStaleTitles, "facade", "rip",
				fmt.Sprintf("title %d is not on the current disc, list titles again", index), nil)
		}
	}

	sorted := make([]int, len(titleIndexes))
	copy(sorted, titleIndexes)
	sort.Ints(sorted)

	job := &queue.Job{
		DriveID:      driveID,
		Device:       drive.Device,
		DiscLabel:    snap.DiscLabel,
		TitleIndexes: sorted,
		OutputDir:    filepath.Join(baseDir, inspection.OutputDirName(snap.DiscLabel)),
		RequestID:    uuid.NewString(),
	}
	if err := f.store.Enqueue(ctx, job); err != nil {
		return nil, err
	}

	f.logger.Info("rip requested",
		logging.Int64(logging.FieldJobID, job.ID),
		logging.Int(logging.FieldDriveID, driveID),
		logging.String("disc_label", job.DiscLabel),
		logging.Int("title_count", len(sorted)),
		logging.String(logging.FieldCorrelationID, job.RequestID),
		logging.String(logging.FieldEventType, "rip_requested"))
	return job, nil
}

// JobStatus fetches one job by id.
func (f *Facade) JobStatus(ctx context.Context, jobID int64) (*queue.Job, error) {
	return f.store.GetByID(ctx, jobID)
}

// ListJobs returns jobs, optionally filtered by status, newest first.
func (f *Facade) ListJobs(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return f.store.List(ctx, statuses...)
}

// CancelJob stops a pending or running job.
func (f *Facade) CancelJob(ctx context.Context, jobID int64) error {
	return f.canceler.Cancel(ctx, jobID)
}

// RetryJob re-queues a failed job.
func (f *Facade) RetryJob(ctx context.Context, jobID int64) error {
	if err := f.store.Retry(ctx, jobID); err != nil {
		return err
	}
	f.logger.Info("job requeued",
		logging.Int64(logging.FieldJobID, jobID),
		logging.String(logging.FieldEventType, "job_retried"))
	return nil
}

// ClearJobs removes finished jobs from the queue. With no statuses both
// completed and failed jobs are removed.
func (f *Facade) ClearJobs(ctx context.Context, statuses ...queue.Status) (int64, error) {
	return f.store.Clear(ctx, statuses...)
}

// QueueStats summarizes the queue by status.
func (f *Facade) QueueStats(ctx context.Context) (queue.Stats, error) {
	return f.store.Stats(ctx)
}
