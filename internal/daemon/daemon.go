package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"ripcord/internal/botfacade"
	"ripcord/internal/config"
	"ripcord/internal/drives"
	"ripcord/internal/executor"
	"ripcord/internal/inspection"
	"ripcord/internal/logging"
	"ripcord/internal/notifications"
	"ripcord/internal/queue"
)

// Daemon coordinates the background services and enforces single-instance
// execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *queue.Store
	registry  *drives.Registry
	inspector *inspection.Inspector
	executor  *executor.Executor
	notifier  notifications.Service
	facade    *botfacade.Facade
	monitor   *drives.Monitor
	cron      *cron.Cron

	logPath  string
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running    bool
	PID        int
	JobDBPath  string
	LockPath   string
	SocketPath string
	Stats      queue.Stats
	Drives     []drives.Drive
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, registry *drives.Registry, inspector *inspection.Inspector, exec *executor.Executor, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || registry == nil || inspector == nil || exec == nil {
		return nil, errors.New("daemon requires config, store, registry, inspector, and executor")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "ripcordd.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		registry:  registry,
		inspector: inspector,
		executor:  exec,
		notifier:  notifier,
		facade:    botfacade.New(cfg, registry, inspector, store, exec, logger),
		logPath:   filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.monitor = drives.NewMonitor(logger, d.handleMediaEvent)
	return d, nil
}

// Facade returns the command surface backed by this daemon's components.
func (d *Daemon) Facade() *botfacade.Facade {
	return d.facade
}

// Start acquires the daemon lock and launches the executor, disc monitor,
// and scheduled maintenance.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ripcord daemon instance is already running")
	}

	// Jobs do not survive restarts. Anything still marked in flight belongs
	// to a previous process and cannot be resumed.
	stale, err := d.store.FailInFlight(ctx, "daemon restarted")
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("fail stale jobs: %w", err)
	}
	if stale > 0 {
		d.logger.Warn("stale jobs failed at startup",
			logging.Int64("count", stale),
			logging.String(logging.FieldEventType, "stale_jobs_failed"),
			logging.String(logging.FieldErrorHint, "re-request any rips that were interrupted"),
			logging.String(logging.FieldImpact, "interrupted rips must be requested again"))
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if _, err := d.registry.Refresh(d.ctx); err != nil {
		logging.WarnWithContext(d.logger, "initial drive scan failed", "drive_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that makemkvcon is installed and licensed"),
			logging.String(logging.FieldImpact, "no drives available until a rescan succeeds"))
	}

	if err := d.monitor.Start(d.ctx); err != nil {
		d.teardown()
		return fmt.Errorf("start disc monitor: %w", err)
	}

	if err := d.scheduleMaintenance(); err != nil {
		d.teardown()
		return fmt.Errorf("schedule maintenance: %w", err)
	}
	d.cron.Start()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.executor.Run(d.ctx); err != nil {
			d.logger.Error("executor stopped", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("ripcord daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_started"))
	return nil
}

func (d *Daemon) scheduleMaintenance() error {
	d.cron = cron.New()

	rescan := strings.TrimSpace(d.cfg.Workflow.DriveRescanCron)
	if rescan != "" {
		if _, err := d.cron.AddFunc(rescan, func() {
			if _, err := d.registry.Refresh(d.ctx); err != nil {
				d.logger.Warn("scheduled drive rescan failed", logging.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("drive rescan schedule %q: %w", rescan, err)
		}
	}

	retention := strings.TrimSpace(d.cfg.Workflow.LogRetentionCron)
	if retention != "" {
		if _, err := d.cron.AddFunc(retention, func() {
			logging.CleanupOldLogs(d.logger, d.cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     d.cfg.Paths.LogDir,
				Pattern: "*.log*",
				Exclude: []string{d.logPath},
			})
		}); err != nil {
			return fmt.Errorf("log retention schedule %q: %w", retention, err)
		}
	}
	return nil
}

// handleMediaEvent reacts to disc insertion and removal reported by the
// netlink monitor.
func (d *Daemon) handleMediaEvent(ctx context.Context, device string, present bool) {
	driveID, known := d.registry.MarkMediaChanged(device, present)
	d.inspector.InvalidateDevice(device)

	if !known {
		// A drive we have not enumerated yet; a rescan picks it up.
		if _, err := d.registry.Refresh(ctx); err != nil {
			d.logger.Warn("drive rescan after media event failed", logging.Error(err))
		}
		return
	}
	if !present {
		return
	}

	snap, err := d.inspector.Inspect(ctx, driveID, device)
	if err != nil {
		d.logger.Warn("inspect after insertion failed",
			logging.Int(logging.FieldDriveID, driveID),
			logging.String(logging.FieldDevice, device),
			logging.Error(err))
		return
	}
	if snap.DiscLabel != "" {
		d.registry.SetDiscLabel(driveID, snap.DiscLabel)
	}
	if notifyErr := d.notifier.NotifyDiscInserted(ctx, snap.DiscLabel, device); notifyErr != nil {
		d.logger.Warn("disc inserted notification", logging.Error(notifyErr))
	}
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.teardown()
	d.running.Store(false)
	d.logger.Info("ripcord daemon stopped",
		logging.String(logging.FieldEventType, "daemon_stopped"))
}

func (d *Daemon) teardown() {
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.cron != nil {
		<-d.cron.Stop().Done()
		d.cron = nil
	}
	d.monitor.Stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
}

// Close stops the daemon and closes the job store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		d.logger.Warn("queue stats", logging.Error(err))
	}
	return Status{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		JobDBPath:  d.store.Path(),
		LockPath:   d.lockPath,
		SocketPath: d.cfg.Paths.SocketPath,
		Stats:      stats,
		Drives:     d.registry.List(),
	}
}

// TestNotification sends a test push using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
