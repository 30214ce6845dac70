package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ripcord/internal/config"
	"ripcord/internal/drives"
	"ripcord/internal/inspection"
	"ripcord/internal/logging"
	"ripcord/internal/notifications"
	"ripcord/internal/queue"
	"ripcord/internal/services"
	"ripcord/internal/services/makemkv"
)

// Ripper extracts one title from a disc. *makemkv.Client satisfies this.
type Ripper interface {
	RipTitle(ctx context.Context, device string, titleIndex int, destDir string, progress func(makemkv.ProgressUpdate)) (string, error)
}

// Ejector opens a drive tray. Stubbed in tests.
type Ejector func(devicePath string) error

// Option configures the executor.
type Option func(*Executor)

// WithPollInterval overrides the queue poll cadence.
func WithPollInterval(interval time.Duration) Option {
	return func(e *Executor) {
		if interval > 0 {
			e.pollInterval = interval
		}
	}
}

// WithReserveRetryInterval overrides the backoff applied after a failed
// drive reservation.
func WithReserveRetryInterval(interval time.Duration) Option {
	return func(e *Executor) {
		if interval > 0 {
			e.reserveRetry = interval
		}
	}
}

// WithEjector replaces the CDROM eject ioctl.
func WithEjector(eject Ejector) Option {
	return func(e *Executor) {
		if eject != nil {
			e.eject = eject
		}
	}
}

// Executor schedules and runs rip jobs against drives.
type Executor struct {
	store    *queue.Store
	registry *drives.Registry
	ripper   Ripper
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval  time.Duration
	reserveRetry  time.Duration
	ejectAfterRip bool
	eject         Ejector

	mu       sync.Mutex
	working  map[int]struct{}    // drive id -> worker in flight
	deferred map[int64]time.Time // job id -> earliest next reservation attempt
	cancels  map[int64]context.CancelFunc
}

// New builds an executor from configuration.
func New(cfg *config.Config, store *queue.Store, registry *drives.Registry, ripper Ripper, notifier notifications.Service, logger *slog.Logger, opts ...Option) *Executor {
	exec := &Executor{
		store:         store,
		registry:      registry,
		ripper:        ripper,
		notifier:      notifier,
		logger:        logging.NewComponentLogger(logger, "executor"),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		reserveRetry:  time.Duration(cfg.Workflow.ReserveRetryInterval) * time.Second,
		ejectAfterRip: cfg.MakeMKV.EjectAfterRip,
		eject:         drives.Eject,
		working:       make(map[int]struct{}),
		deferred:      make(map[int64]time.Time),
		cancels:       make(map[int64]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(exec)
	}
	return exec
}

// Run polls the queue and dispatches workers until the context is canceled.
// It returns after all in-flight workers have finished.
func (e *Executor) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		e.dispatch(groupCtx, group)
		select {
		case <-groupCtx.Done():
			err := group.Wait()
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case <-ticker.C:
		}
	}
}

// dispatch starts a worker for every drive that has pending work and no
// worker already in flight.
func (e *Executor) dispatch(ctx context.Context, group *errgroup.Group) {
	for _, drive := range e.registry.List() {
		if drive.State == drives.StateOffline {
			continue
		}
		driveID := drive.ID

		e.mu.Lock()
		if _, busy := e.working[driveID]; busy {
			e.mu.Unlock()
			continue
		}
		e.mu.Unlock()

		job, err := e.store.NextPending(ctx, driveID)
		if err != nil {
			e.logger.Error("poll queue",
				logging.Int(logging.FieldDriveID, driveID),
				logging.Error(err))
			continue
		}
		if job == nil {
			continue
		}

		e.mu.Lock()
		if until, ok := e.deferred[job.ID]; ok && time.Now().Before(until) {
			e.mu.Unlock()
			continue
		}
		delete(e.deferred, job.ID)
		if _, busy := e.working[driveID]; busy {
			e.mu.Unlock()
			continue
		}
		e.working[driveID] = struct{}{}
		e.mu.Unlock()

		claimed := job
		group.Go(func() error {
			defer func() {
				e.mu.Lock()
				delete(e.working, driveID)
				e.mu.Unlock()
			}()
			e.runJob(ctx, claimed)
			return nil
		})
	}
}

// runJob drives one job through the state machine. The drive is released on
// every exit path once reserved.
func (e *Executor) runJob(ctx context.Context, job *queue.Job) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithDriveID(ctx, job.DriveID)
	if job.RequestID != "" {
		ctx = services.WithRequestID(ctx, job.RequestID)
	}
	logger := logging.WithContext(ctx, e.logger)

	ok, err := e.store.TransitionStatus(ctx, job.ID, queue.StatusPending, queue.StatusReserving)
	if err != nil {
		logger.Error("claim job", logging.Error(err))
		return
	}
	if !ok {
		return
	}

	if err := e.registry.Reserve(job.DriveID); err != nil {
		// The drive is occupied or offline right now. Put the job back and
		// try again after the retry interval.
		logger.Warn("drive reservation deferred",
			logging.Error(err),
			logging.Duration("retry_in", e.reserveRetry),
			logging.String(logging.FieldEventType, "reserve_deferred"))
		if _, backErr := e.store.TransitionStatus(ctx, job.ID, queue.StatusReserving, queue.StatusPending); backErr != nil {
			logger.Error("return job to pending", logging.Error(backErr))
		}
		e.mu.Lock()
		e.deferred[job.ID] = time.Now().Add(e.reserveRetry)
		e.mu.Unlock()
		return
	}
	defer e.registry.Release(job.DriveID)

	ok, err = e.store.TransitionStatus(ctx, job.ID, queue.StatusReserving, queue.StatusRunning)
	if err != nil || !ok {
		if err != nil {
			logger.Error("start job", logging.Error(err))
		}
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancels[job.ID] = cancel
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.cancels, job.ID)
		e.mu.Unlock()
	}()

	logger.Info("rip started",
		logging.String("disc_label", job.DiscLabel),
		logging.Int("title_count", len(job.TitleIndexes)),
		logging.String(logging.FieldEventType, "rip_started"))
	if notifyErr := e.notifier.NotifyRipStarted(ctx, job.DiscLabel, len(job.TitleIndexes)); notifyErr != nil {
		logger.Warn("rip started notification", logging.Error(notifyErr))
	}

	started := time.Now()
	files, ripErr := e.ripTitles(jobCtx, logger, job)
	if ripErr != nil {
		message := ripErr.Error()
		if errors.Is(jobCtx.Err(), context.Canceled) && ctx.Err() == nil {
			message = "job cancelled"
		}
		if markErr := e.store.MarkFailed(ctx, job.ID, message, files); markErr != nil {
			logger.Error("mark job failed", logging.Error(markErr))
		}
		logger.Error("rip failed",
			logging.Error(ripErr),
			logging.Int("files_retained", len(files)),
			logging.String(logging.FieldEventType, "rip_failed"))
		if notifyErr := e.notifier.NotifyRipFailed(ctx, job.DiscLabel, message); notifyErr != nil {
			logger.Warn("rip failed notification", logging.Error(notifyErr))
		}
		return
	}

	if err := e.store.MarkCompleted(ctx, job.ID, files); err != nil {
		logger.Error("mark job completed", logging.Error(err))
		return
	}
	logger.Info("rip completed",
		logging.Int("file_count", len(files)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "rip_completed"))
	if notifyErr := e.notifier.NotifyRipCompleted(ctx, job.DiscLabel, len(files), time.Since(started)); notifyErr != nil {
		logger.Warn("rip completed notification", logging.Error(notifyErr))
	}

	if e.ejectAfterRip {
		if err := e.eject(job.Device); err != nil {
			logger.Warn("eject after rip",
				logging.String(logging.FieldDevice, job.Device),
				logging.Error(err))
		}
	}
}

// ripTitles extracts the job's titles one at a time. Each title rips into a
// temp directory and is renamed into place on success, so a mid-job failure
// never leaves a truncated file under the final name. Files finished before
// the failure are returned so they are retained.
func (e *Executor) ripTitles(ctx context.Context, logger *slog.Logger, job *queue.Job) ([]string, error) {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	files := make([]string, 0, len(job.TitleIndexes))
	for _, titleIndex := range job.TitleIndexes {
		if err := ctx.Err(); err != nil {
			return files, err
		}

		tempDir, err := os.MkdirTemp(job.OutputDir, fmt.Sprintf(".rip-%d-", job.ID))
		if err != nil {
			return files, fmt.Errorf("create temp directory: %w", err)
		}

		produced, ripErr := e.ripper.RipTitle(ctx, job.Device, titleIndex, tempDir, func(update makemkv.ProgressUpdate) {
			if err := e.store.SetProgress(ctx, job.ID, update.Stage, update.Percent, update.Message, titleIndex); err != nil {
				logger.Warn("persist progress", logging.Error(err))
			}
		})
		if ripErr != nil {
			_ = os.RemoveAll(tempDir)
			return files, fmt.Errorf("rip title %d: %w", titleIndex, ripErr)
		}

		finalPath := filepath.Join(job.OutputDir, inspection.OutputFileName(job.DiscLabel, titleIndex))
		if err := os.Rename(produced, finalPath); err != nil {
			_ = os.RemoveAll(tempDir)
			return files, fmt.Errorf("move title %d into place: %w", titleIndex, err)
		}
		_ = os.RemoveAll(tempDir)

		files = append(files, finalPath)
		logger.Info("title ripped",
			logging.Int("title", titleIndex),
			logging.String("file", finalPath))
	}
	return files, nil
}

// Cancel stops a job. A running job's worker is interrupted; a pending job
// is failed in place. Terminal jobs cannot be cancelled.
func (e *Executor) Cancel(ctx context.Context, jobID int64) error {
	e.mu.Lock()
	cancel, running := e.cancels[jobID]
	e.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	job, err := e.store.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.IsTerminal() {
		return services.Wrap(services.ErrValidation, "executor", "cancel",
			fmt.Sprintf("job %d already %s", jobID, job.Status), nil)
	}

	ok, err := e.store.TransitionStatus(ctx, jobID, queue.StatusPending, queue.StatusFailed)
	if err != nil {
		return err
	}
	if !ok {
		return services.Wrap(services.ErrTransient, "executor", "cancel",
			fmt.Sprintf("job %d is changing state, retry", jobID), nil)
	}
	return e.store.MarkFailed(ctx, jobID, "job cancelled", nil)
}
