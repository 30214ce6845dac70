package inspection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ripcord/internal/drives"
	"ripcord/internal/logging"
	"ripcord/internal/services/makemkv"
)

// Title is one rippable title discovered on a disc.
type Title struct {
	Index       int
	Name        string
	Duration    int
	Size        string
	Bytes       int64
	Chapters    int
	MainFeature bool
}

// Snapshot is the inventory of the disc present in a drive at a point in
// time. A rip request is validated against the snapshot taken for its drive;
// swapping the disc invalidates earlier snapshots.
type Snapshot struct {
	DriveID   int
	Device    string
	DiscLabel string
	Titles    []Title
	Taken     time.Time
}

// HasTitle reports whether the snapshot contains the given title index.
func (s *Snapshot) HasTitle(index int) bool {
	if s == nil {
		return false
	}
	for _, title := range s.Titles {
		if title.Index == index {
			return true
		}
	}
	return false
}

// Scanner produces a disc inventory for a device. *makemkv.Client satisfies
// this.
type Scanner interface {
	Inventory(ctx context.Context, device string) (makemkv.DiscInfo, error)
}

// MediaProbe answers whether a disc is loaded without invoking makemkvcon.
type MediaProbe func(device string) (drives.MediaStatus, error)

// Option configures the inspector.
type Option func(*Inspector)

// WithMediaProbe replaces the ioctl probe (primarily for tests).
func WithMediaProbe(probe MediaProbe) Option {
	return func(i *Inspector) {
		if probe != nil {
			i.probe = probe
		}
	}
}

// Inspector runs disc inventories and caches the latest snapshot per drive.
type Inspector struct {
	scanner Scanner
	probe   MediaProbe
	logger  *slog.Logger

	mu     sync.Mutex
	latest map[int]*Snapshot
}

// NewInspector builds an inspector backed by the given scanner.
func NewInspector(scanner Scanner, logger *slog.Logger, opts ...Option) *Inspector {
	insp := &Inspector{
		scanner: scanner,
		probe:   drives.ProbeMedia,
		logger:  logging.NewComponentLogger(logger, "inspector"),
		latest:  make(map[int]*Snapshot),
	}
	for _, opt := range opts {
		opt(insp)
	}
	return insp
}

// Inspect inventories the disc in the given drive and caches the snapshot.
// An empty or absent disc yields a snapshot with no titles and no error.
func (i *Inspector) Inspect(ctx context.Context, driveID int, device string) (*Snapshot, error) {
	snap := &Snapshot{DriveID: driveID, Device: device, Taken: time.Now().UTC()}

	// The ioctl probe short-circuits the expensive makemkvcon scan when the
	// tray is empty. Probe failures are advisory; makemkvcon still decides.
	if status, err := i.probe(device); err == nil && !status.HasDisc() {
		i.logger.Info("no disc present",
			logging.Int(logging.FieldDriveID, driveID),
			logging.String(logging.FieldDevice, device),
			logging.String("media_status", status.String()),
			logging.String(logging.FieldEventType, "inspect_no_disc"),
		)
		i.store(snap)
		return snap, nil
	}

	info, err := i.scanner.Inventory(ctx, device)
	if err != nil {
		return nil, err
	}

	if info.Skipped > 0 {
		logging.WarnWithContext(i.logger, "inventory lines skipped", "inspect_lines_skipped",
			logging.Int(logging.FieldDriveID, driveID),
			logging.Int("skipped", info.Skipped),
			logging.String(logging.FieldErrorHint, "rerun with debug logging to capture raw makemkvcon output"),
			logging.String(logging.FieldImpact, "some titles may be missing from the inventory"),
		)
	}

	snap.DiscLabel = info.Name
	snap.Titles = make([]Title, 0, len(info.Titles))
	longest := -1
	for idx, t := range info.Titles {
		snap.Titles = append(snap.Titles, Title{
			Index:    t.Index,
			Name:     t.Name,
			Duration: t.Duration,
			Size:     t.Size,
			Bytes:    t.Bytes,
			Chapters: t.Chapters,
		})
		if longest < 0 || t.Duration > info.Titles[longest].Duration {
			if t.Duration > 0 {
				longest = idx
			}
		}
	}
	if longest >= 0 {
		snap.Titles[longest].MainFeature = true
	}

	i.logger.Info("disc inventoried",
		logging.Int(logging.FieldDriveID, driveID),
		logging.String(logging.FieldDevice, device),
		logging.String("disc_label", snap.DiscLabel),
		logging.Int("title_count", len(snap.Titles)),
		logging.String(logging.FieldEventType, "inspect_complete"),
	)

	i.store(snap)
	return snap, nil
}

// Latest returns the most recent snapshot for a drive, if any.
func (i *Inspector) Latest(driveID int) (*Snapshot, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	snap, ok := i.latest[driveID]
	return snap, ok
}

// Invalidate discards the cached snapshot for a drive. Called when media is
// removed or swapped so stale title selections cannot be ripped.
func (i *Inspector) Invalidate(driveID int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.latest, driveID)
}

// InvalidateDevice discards cached snapshots matching a device node.
func (i *Inspector) InvalidateDevice(device string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id, snap := range i.latest {
		if snap.Device == device {
			delete(i.latest, id)
		}
	}
}

func (i *Inspector) store(snap *Snapshot) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.latest[snap.DriveID] = snap
}
