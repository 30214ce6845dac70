package queue_test

import (
	"context"
	"errors"
	"testing"

	"ripcord/internal/queue"
	"ripcord/internal/services"
	"ripcord/internal/testsupport"
)

func newStore(t *testing.T) *queue.Store {
	t.Helper()
	store, err := queue.Open(testsupport.NewConfig(t))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func enqueue(t *testing.T, store *queue.Store, driveID int, titles ...int) *queue.Job {
	t.Helper()
	job := &queue.Job{
		DriveID:      driveID,
		Device:       "/dev/sr0",
		DiscLabel:    "MOVIE_DISC",
		TitleIndexes: titles,
		OutputDir:    "/tmp/rips/Movie Disc",
		RequestID:    "req-test",
	}
	if err := store.Enqueue(context.Background(), job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return job
}

func TestEnqueueAssignsMonotonicIDs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := enqueue(t, store, 0, 1)
	if err := store.MarkCompleted(ctx, first.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	second := enqueue(t, store, 0, 2)
	if second.ID <= first.ID {
		t.Fatalf("ids not monotonic: %d then %d", first.ID, second.ID)
	}
	if second.Status != queue.StatusPending {
		t.Fatalf("status = %s", second.Status)
	}
}

func TestEnqueueRejectsBusyDrive(t *testing.T) {
	store := newStore(t)
	enqueue(t, store, 0, 1)

	err := store.Enqueue(context.Background(), &queue.Job{
		DriveID: 0, Device: "/dev/sr0", TitleIndexes: []int{2}, OutputDir: "/tmp",
	})
	if !errors.Is(err, services.ErrDriveUnavailable) {
		t.Fatalf("expected ErrDriveUnavailable, got %v", err)
	}

	// A different drive is unaffected.
	other := &queue.Job{DriveID: 1, Device: "/dev/sr1", TitleIndexes: []int{1}, OutputDir: "/tmp"}
	if err := store.Enqueue(context.Background(), other); err != nil {
		t.Fatalf("enqueue on free drive: %v", err)
	}
}

func TestNextPendingIsFIFOPerDrive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first := enqueue(t, store, 0, 1)
	if err := store.MarkFailed(ctx, first.ID, "boom", nil); err != nil {
		t.Fatalf("fail: %v", err)
	}
	second := enqueue(t, store, 0, 2)
	otherDrive := enqueue(t, store, 1, 1)

	next, err := store.NextPending(ctx, 0)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("next = %+v, want job %d", next, second.ID)
	}

	next, err = store.NextPending(ctx, 1)
	if err != nil {
		t.Fatalf("NextPending drive 1: %v", err)
	}
	if next == nil || next.ID != otherDrive.ID {
		t.Fatalf("drive 1 next = %+v", next)
	}
}

func TestTransitionStatusIsCompareAndSwap(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	job := enqueue(t, store, 0, 1)

	ok, err := store.TransitionStatus(ctx, job.ID, queue.StatusPending, queue.StatusReserving)
	if err != nil || !ok {
		t.Fatalf("pending -> reserving: ok=%v err=%v", ok, err)
	}

	// Stale transition from pending must lose.
	ok, err = store.TransitionStatus(ctx, job.ID, queue.StatusPending, queue.StatusReserving)
	if err != nil {
		t.Fatalf("repeat transition: %v", err)
	}
	if ok {
		t.Fatal("compare-and-swap allowed a stale transition")
	}

	ok, err = store.TransitionStatus(ctx, job.ID, queue.StatusReserving, queue.StatusRunning)
	if err != nil || !ok {
		t.Fatalf("reserving -> running: ok=%v err=%v", ok, err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != queue.StatusRunning {
		t.Fatalf("status = %s", fetched.Status)
	}
	if fetched.StartedAt == nil {
		t.Fatal("started_at not stamped on running transition")
	}
}

func TestReservationDeferralReturnsJobToPending(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	job := enqueue(t, store, 0, 1)

	if ok, _ := store.TransitionStatus(ctx, job.ID, queue.StatusPending, queue.StatusReserving); !ok {
		t.Fatal("pending -> reserving failed")
	}
	if ok, _ := store.TransitionStatus(ctx, job.ID, queue.StatusReserving, queue.StatusPending); !ok {
		t.Fatal("reserving -> pending failed")
	}

	next, err := store.NextPending(ctx, 0)
	if err != nil {
		t.Fatalf("NextPending: %v", err)
	}
	if next == nil || next.ID != job.ID {
		t.Fatal("deferred job not visible as pending")
	}
}

func TestMarkCompletedRecordsFiles(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	job := enqueue(t, store, 0, 1, 2)

	files := []string{"/rips/Disc/Disc - Title 01.mkv", "/rips/Disc/Disc - Title 02.mkv"}
	if err := store.MarkCompleted(ctx, job.ID, files); err != nil {
		t.Fatalf("complete: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != queue.StatusCompleted {
		t.Fatalf("status = %s", fetched.Status)
	}
	if len(fetched.OutputFiles) != 2 || fetched.OutputFiles[0] != files[0] {
		t.Fatalf("files = %+v", fetched.OutputFiles)
	}
	if fetched.FinishedAt == nil {
		t.Fatal("finished_at not stamped")
	}
	if fetched.ProgressPercent != 100 {
		t.Fatalf("progress = %f", fetched.ProgressPercent)
	}
}

func TestMarkFailedRetainsPartialFiles(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	job := enqueue(t, store, 0, 1, 2)

	partial := []string{"/rips/Disc/Disc - Title 01.mkv"}
	if err := store.MarkFailed(ctx, job.ID, "read error on title 2", partial); err != nil {
		t.Fatalf("fail: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Status != queue.StatusFailed {
		t.Fatalf("status = %s", fetched.Status)
	}
	if fetched.ErrorMessage != "read error on title 2" {
		t.Fatalf("error = %q", fetched.ErrorMessage)
	}
	if len(fetched.OutputFiles) != 1 {
		t.Fatalf("partial files lost: %+v", fetched.OutputFiles)
	}
}

func TestFailInFlight(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	running := enqueue(t, store, 0, 1)
	if ok, _ := store.TransitionStatus(ctx, running.ID, queue.StatusPending, queue.StatusReserving); !ok {
		t.Fatal("transition failed")
	}
	if ok, _ := store.TransitionStatus(ctx, running.ID, queue.StatusReserving, queue.StatusRunning); !ok {
		t.Fatal("transition failed")
	}
	pending := enqueue(t, store, 1, 1)
	done := enqueue(t, store, 2, 1)
	if err := store.MarkCompleted(ctx, done.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}

	affected, err := store.FailInFlight(ctx, "daemon restarted")
	if err != nil {
		t.Fatalf("FailInFlight: %v", err)
	}
	if affected != 2 {
		t.Fatalf("affected = %d, want 2", affected)
	}

	for _, id := range []int64{running.ID, pending.ID} {
		fetched, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("get %d: %v", id, err)
		}
		if fetched.Status != queue.StatusFailed || fetched.ErrorMessage != "daemon restarted" {
			t.Fatalf("job %d = %s %q", id, fetched.Status, fetched.ErrorMessage)
		}
	}
	fetched, _ := store.GetByID(ctx, done.ID)
	if fetched.Status != queue.StatusCompleted {
		t.Fatal("completed job touched by FailInFlight")
	}
}

func TestGetByIDUnknown(t *testing.T) {
	store := newStore(t)
	if _, err := store.GetByID(context.Background(), 404); !errors.Is(err, services.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestListAndStats(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	a := enqueue(t, store, 0, 1)
	if err := store.MarkCompleted(ctx, a.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	b := enqueue(t, store, 0, 2)
	if err := store.MarkFailed(ctx, b.ID, "boom", nil); err != nil {
		t.Fatalf("fail: %v", err)
	}
	enqueue(t, store, 1, 1)

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("all = %d", len(all))
	}
	if all[0].ID < all[1].ID {
		t.Fatal("list not newest-first")
	}

	failed, err := store.List(ctx, queue.StatusFailed)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != b.ID {
		t.Fatalf("failed = %+v", failed)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Pending != 1 || stats.Completed != 1 || stats.Failed != 1 || stats.Total() != 3 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestClearOnlyRemovesTerminalJobs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	done := enqueue(t, store, 0, 1)
	if err := store.MarkCompleted(ctx, done.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	failed := enqueue(t, store, 0, 2)
	if err := store.MarkFailed(ctx, failed.ID, "boom", nil); err != nil {
		t.Fatalf("fail: %v", err)
	}
	enqueue(t, store, 1, 1)

	if _, err := store.Clear(ctx, queue.StatusPending); err == nil {
		t.Fatal("clearing an active status must be refused")
	}

	removed, err := store.Clear(ctx, queue.StatusCompleted)
	if err != nil {
		t.Fatalf("clear completed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}

	removed, err = store.Clear(ctx)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d", removed)
	}

	stats, _ := store.Stats(ctx)
	if stats.Pending != 1 || stats.Total() != 1 {
		t.Fatalf("stats after clear = %+v", stats)
	}
}

func TestActiveForDrive(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := enqueue(t, store, 0, 1)
	active, err := store.ActiveForDrive(ctx, 0)
	if err != nil {
		t.Fatalf("ActiveForDrive: %v", err)
	}
	if active == nil || active.ID != job.ID {
		t.Fatalf("active = %+v", active)
	}

	if err := store.MarkCompleted(ctx, job.ID, nil); err != nil {
		t.Fatalf("complete: %v", err)
	}
	active, err = store.ActiveForDrive(ctx, 0)
	if err != nil {
		t.Fatalf("ActiveForDrive: %v", err)
	}
	if active != nil {
		t.Fatalf("completed job still active: %+v", active)
	}
}

func TestRetryRequeuesFailedJob(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := enqueue(t, store, 0, 1, 2)
	if err := store.MarkFailed(ctx, job.ID, "disc read error", []string{"/tmp/partial.mkv"}); err != nil {
		t.Fatalf("fail: %v", err)
	}

	if err := store.Retry(ctx, job.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}

	got, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("status = %s", got.Status)
	}
	if got.ErrorMessage != "" || len(got.OutputFiles) != 0 {
		t.Fatalf("retry did not clear failure state: %+v", got)
	}
	if got.StartedAt != nil || got.FinishedAt != nil {
		t.Fatalf("retry did not clear timestamps: %+v", got)
	}
	if got.ProgressPercent != 0 || got.ProgressStage != "" {
		t.Fatalf("retry did not clear progress: %+v", got)
	}

	next, err := store.NextPending(ctx, 0)
	if err != nil {
		t.Fatalf("next pending: %v", err)
	}
	if next == nil || next.ID != job.ID {
		t.Fatalf("requeued job not pending: %+v", next)
	}
}

func TestRetryRejectsNonFailedAndUnknownJobs(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	job := enqueue(t, store, 0, 1)
	if err := store.Retry(ctx, job.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("retry of pending job: %v", err)
	}

	if err := store.Retry(ctx, 9999); !errors.Is(err, services.ErrJobNotFound) {
		t.Fatalf("retry of missing job: %v", err)
	}
}

func TestRetryRefusesDriveWithActiveJob(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	failed := enqueue(t, store, 0, 1)
	if err := store.MarkFailed(ctx, failed.ID, "boom", nil); err != nil {
		t.Fatalf("fail: %v", err)
	}
	enqueue(t, store, 0, 2)

	if err := store.Retry(ctx, failed.ID); !errors.Is(err, services.ErrDriveUnavailable) {
		t.Fatalf("retry with busy drive: %v", err)
	}
}
