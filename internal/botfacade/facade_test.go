package botfacade

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ripcord/internal/config"
	"ripcord/internal/drives"
	"ripcord/internal/inspection"
	"ripcord/internal/logging"
	"ripcord/internal/queue"
	"ripcord/internal/services"
	"ripcord/internal/services/makemkv"
	"ripcord/internal/testsupport"
)

type stubEnumerator struct {
	drives []makemkv.DriveInfo
}

func (s *stubEnumerator) ListDrives(context.Context) ([]makemkv.DriveInfo, error) {
	return s.drives, nil
}

type stubInspector struct {
	snapshots map[int]*inspection.Snapshot
	err       error
	inspected int
}

func (s *stubInspector) Inspect(_ context.Context, driveID int, device string) (*inspection.Snapshot, error) {
	s.inspected++
	if s.err != nil {
		return nil, s.err
	}
	if snap, ok := s.snapshots[driveID]; ok {
		return snap, nil
	}
	return &inspection.Snapshot{DriveID: driveID, Device: device, Taken: time.Now()}, nil
}

func (s *stubInspector) Latest(driveID int) (*inspection.Snapshot, bool) {
	snap, ok := s.snapshots[driveID]
	return snap, ok
}

type stubCanceler struct {
	cancelled []int64
	err       error
}

func (s *stubCanceler) Cancel(_ context.Context, jobID int64) error {
	if s.err != nil {
		return s.err
	}
	s.cancelled = append(s.cancelled, jobID)
	return nil
}

type fixture struct {
	cfg       *config.Config
	registry  *drives.Registry
	inspector *stubInspector
	store     *queue.Store
	canceler  *stubCanceler
	facade    *Facade
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	enum := &stubEnumerator{drives: []makemkv.DriveInfo{
		{ID: 0, Device: "/dev/sr0", Model: "LG WH16NS40", DiscLabel: "THE_MATRIX"},
		{ID: 1, Device: "/dev/sr1", Model: "Pioneer BDR"},
	}}
	registry := drives.NewRegistry(enum, logging.NewNop())
	if _, err := registry.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	inspector := &stubInspector{snapshots: map[int]*inspection.Snapshot{
		0: {
			DriveID:   0,
			Device:    "/dev/sr0",
			DiscLabel: "THE_MATRIX",
			Titles: []inspection.Title{
				{Index: 0, Name: "Featurette", Duration: 1200},
				{Index: 1, Name: "The Matrix", Duration: 8178, MainFeature: true},
			},
			Taken: time.Now(),
		},
	}}

	canceler := &stubCanceler{}
	return &fixture{
		cfg:       cfg,
		registry:  registry,
		inspector: inspector,
		store:     store,
		canceler:  canceler,
		facade:    New(cfg, registry, inspector, store, canceler, logging.NewNop()),
	}
}

func TestRequestRipEnqueuesJob(t *testing.T) {
	f := newFixture(t)

	job, err := f.facade.RequestRip(context.Background(), 0, []int{1, 0}, "")
	if err != nil {
		t.Fatalf("RequestRip: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("job id not assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("status = %s", job.Status)
	}
	if len(job.TitleIndexes) != 2 || job.TitleIndexes[0] != 0 || job.TitleIndexes[1] != 1 {
		t.Fatalf("titles = %v, want sorted", job.TitleIndexes)
	}
	if job.DiscLabel != "THE_MATRIX" {
		t.Fatalf("label = %q", job.DiscLabel)
	}
	if job.RequestID == "" {
		t.Fatal("request id not assigned")
	}

	fetched, err := f.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if want := filepath.Join(f.cfg.Paths.OutputDir, "The Matrix"); fetched.OutputDir != want {
		t.Fatalf("output dir = %q, want %q", fetched.OutputDir, want)
	}
}

func TestRequestRipOutputDirOverride(t *testing.T) {
	f := newFixture(t)

	custom := t.TempDir()
	job, err := f.facade.RequestRip(context.Background(), 0, []int{0}, custom)
	if err != nil {
		t.Fatalf("RequestRip: %v", err)
	}
	if want := filepath.Join(custom, "The Matrix"); job.OutputDir != want {
		t.Fatalf("output dir = %q, want %q", job.OutputDir, want)
	}
}

func TestRequestRipUnknownDrive(t *testing.T) {
	f := newFixture(t)
	if _, err := f.facade.RequestRip(context.Background(), 7, []int{1}, ""); !errors.Is(err, services.ErrDriveNotFound) {
		t.Fatalf("expected ErrDriveNotFound, got %v", err)
	}
}

func TestRequestRipBusyDrive(t *testing.T) {
	f := newFixture(t)
	if err := f.registry.Reserve(0); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := f.facade.RequestRip(context.Background(), 0, []int{1}, ""); !errors.Is(err, services.ErrDriveUnavailable) {
		t.Fatalf("expected ErrDriveUnavailable, got %v", err)
	}
}

func TestRequestRipDriveWithActiveJob(t *testing.T) {
	f := newFixture(t)
	if _, err := f.facade.RequestRip(context.Background(), 0, []int{1}, ""); err != nil {
		t.Fatalf("first request: %v", err)
	}
	// Drive state is still idle (the executor has not claimed the job yet),
	// but the queue refuses a second active job for the same drive.
	if _, err := f.facade.RequestRip(context.Background(), 0, []int{0}, ""); !errors.Is(err, services.ErrDriveUnavailable) {
		t.Fatalf("expected ErrDriveUnavailable, got %v", err)
	}
}

func TestRequestRipEmptyDrive(t *testing.T) {
	f := newFixture(t)
	// Drive 1 has no snapshot; the inspector returns an empty one.
	if _, err := f.facade.RequestRip(context.Background(), 1, []int{0}, ""); !errors.Is(err, services.ErrNoDisc) {
		t.Fatalf("expected ErrNoDisc, got %v", err)
	}
}

func TestRequestRipStaleTitleDoesNotTouchQueue(t *testing.T) {
	f := newFixture(t)

	if _, err := f.facade.RequestRip(context.Background(), 0, []int{1, 9}, ""); !errors.Is(err, services.ErrStaleTitles) {
		t.Fatalf("expected ErrStaleTitles, got %v", err)
	}

	stats, err := f.store.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total() != 0 {
		t.Fatalf("queue mutated by stale selection: %+v", stats)
	}
}

func TestRequestRipValidation(t *testing.T) {
	f := newFixture(t)
	for _, titles := range [][]int{{}, {-1}, {1, 1}} {
		if _, err := f.facade.RequestRip(context.Background(), 0, titles, ""); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("titles %v: expected ErrValidation, got %v", titles, err)
		}
	}
}

func TestListTitles(t *testing.T) {
	f := newFixture(t)

	snap, err := f.facade.ListTitles(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListTitles: %v", err)
	}
	if len(snap.Titles) != 2 {
		t.Fatalf("titles = %d", len(snap.Titles))
	}
	if f.inspector.inspected != 1 {
		t.Fatalf("inspections = %d", f.inspector.inspected)
	}

	if _, err := f.facade.ListTitles(context.Background(), 7); !errors.Is(err, services.ErrDriveNotFound) {
		t.Fatalf("expected ErrDriveNotFound, got %v", err)
	}
}

func TestListDrives(t *testing.T) {
	f := newFixture(t)
	list, err := f.facade.ListDrives(context.Background())
	if err != nil {
		t.Fatalf("ListDrives: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("drives = %d", len(list))
	}
}

func TestJobStatusAndCancel(t *testing.T) {
	f := newFixture(t)

	job, err := f.facade.RequestRip(context.Background(), 0, []int{1}, "")
	if err != nil {
		t.Fatalf("RequestRip: %v", err)
	}

	fetched, err := f.facade.JobStatus(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobStatus: %v", err)
	}
	if fetched.ID != job.ID {
		t.Fatalf("fetched = %+v", fetched)
	}

	if _, err := f.facade.JobStatus(context.Background(), 404); !errors.Is(err, services.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	if err := f.facade.CancelJob(context.Background(), job.ID); err != nil {
		t.Fatalf("CancelJob: %v", err)
	}
	if len(f.canceler.cancelled) != 1 || f.canceler.cancelled[0] != job.ID {
		t.Fatalf("cancelled = %v", f.canceler.cancelled)
	}
}
