package drives

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"ripcord/internal/logging"
	"ripcord/internal/services"
	"ripcord/internal/services/makemkv"
)

// State describes drive availability.
type State string

const (
	StateIdle    State = "idle"
	StateBusy    State = "busy"
	StateOffline State = "offline"
	StateUnknown State = "unknown"
)

// Drive is a snapshot of one optical drive known to the registry.
type Drive struct {
	ID        int
	Device    string
	Model     string
	DiscLabel string
	State     State
}

// Enumerator lists the drives currently attached to the host.
// *makemkv.Client satisfies this.
type Enumerator interface {
	ListDrives(ctx context.Context) ([]makemkv.DriveInfo, error)
}

// Registry owns drive state. Idle and Busy only change through Reserve and
// Release so two jobs can never hold the same drive.
type Registry struct {
	mu     sync.Mutex
	drives map[int]*Drive
	enum   Enumerator
	logger *slog.Logger
}

// NewRegistry builds an empty registry; call Refresh to populate it.
func NewRegistry(enum Enumerator, logger *slog.Logger) *Registry {
	return &Registry{
		drives: make(map[int]*Drive),
		enum:   enum,
		logger: logging.NewComponentLogger(logger, "drive-registry"),
	}
}

// Refresh re-enumerates drives and merges the result into the registry.
// Busy drives keep their state; drives that vanished are marked Offline.
func (r *Registry) Refresh(ctx context.Context) ([]Drive, error) {
	infos, err := r.enum.ListDrives(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int]struct{}, len(infos))
	for _, info := range infos {
		seen[info.ID] = struct{}{}
		existing, ok := r.drives[info.ID]
		if !ok {
			r.drives[info.ID] = &Drive{
				ID:        info.ID,
				Device:    info.Device,
				Model:     info.Model,
				DiscLabel: info.DiscLabel,
				State:     StateIdle,
			}
			r.logger.Info("drive discovered",
				logging.Int(logging.FieldDriveID, info.ID),
				logging.String(logging.FieldDevice, info.Device),
				logging.String("model", info.Model),
				logging.String(logging.FieldEventType, "drive_discovered"),
			)
			continue
		}
		existing.Device = info.Device
		existing.Model = info.Model
		existing.DiscLabel = info.DiscLabel
		if existing.State == StateOffline || existing.State == StateUnknown {
			existing.State = StateIdle
		}
	}

	for id, drive := range r.drives {
		if _, ok := seen[id]; ok {
			continue
		}
		if drive.State != StateOffline {
			drive.State = StateOffline
			logging.WarnWithContext(r.logger, "drive went offline", "drive_offline",
				logging.Int(logging.FieldDriveID, id),
				logging.String(logging.FieldDevice, drive.Device),
				logging.String(logging.FieldErrorHint, "check cabling or run a drive rescan"),
				logging.String(logging.FieldImpact, "drive cannot accept rip jobs"),
			)
		}
	}

	return r.snapshotLocked(), nil
}

// Reserve transitions a drive from Idle to Busy. It fails with
// ErrDriveNotFound for unknown drives and ErrDriveUnavailable for drives in
// any state other than Idle.
func (r *Registry) Reserve(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	drive, ok := r.drives[id]
	if !ok {
		return services.Wrap(services.ErrDriveNotFound, "drive-registry", "reserve", "", nil)
	}
	if drive.State != StateIdle {
		return services.Wrap(services.ErrDriveUnavailable, "drive-registry", "reserve", string(drive.State), nil)
	}
	drive.State = StateBusy
	return nil
}

// Release returns a Busy drive to Idle. Releasing an offline or unknown drive
// leaves its state untouched.
func (r *Registry) Release(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drive, ok := r.drives[id]
	if !ok {
		return
	}
	if drive.State == StateBusy {
		drive.State = StateIdle
	}
}

// Get returns a copy of a drive.
func (r *Registry) Get(id int) (Drive, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drive, ok := r.drives[id]
	if !ok {
		return Drive{}, false
	}
	return *drive, true
}

// List returns copies of all known drives ordered by ID.
func (r *Registry) List() []Drive {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// SetDiscLabel records the label discovered by an inspection.
func (r *Registry) SetDiscLabel(id int, label string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if drive, ok := r.drives[id]; ok {
		drive.DiscLabel = label
	}
}

// MarkMediaChanged reacts to a udev event for the given device node. Media
// removal clears the stored label; a Busy drive keeps its state either way.
func (r *Registry) MarkMediaChanged(device string, present bool) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, drive := range r.drives {
		if drive.Device != device {
			continue
		}
		if !present {
			drive.DiscLabel = ""
		}
		if drive.State == StateOffline || drive.State == StateUnknown {
			drive.State = StateIdle
		}
		return id, true
	}
	return 0, false
}

func (r *Registry) snapshotLocked() []Drive {
	out := make([]Drive, 0, len(r.drives))
	for _, drive := range r.drives {
		out = append(out, *drive)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
