package inspection

import (
	"context"
	"errors"
	"testing"

	"ripcord/internal/drives"
	"ripcord/internal/logging"
	"ripcord/internal/services"
	"ripcord/internal/services/makemkv"
)

type stubScanner struct {
	info  makemkv.DiscInfo
	err   error
	calls int
}

func (s *stubScanner) Inventory(context.Context, string) (makemkv.DiscInfo, error) {
	s.calls++
	if s.err != nil {
		return makemkv.DiscInfo{}, s.err
	}
	return s.info, nil
}

func discPresent(string) (drives.MediaStatus, error) { return drives.MediaStatusDiscOK, nil }

func discAbsent(string) (drives.MediaStatus, error) { return drives.MediaStatusNoDisc, nil }

func TestInspectBuildsSnapshotAndFlagsMainFeature(t *testing.T) {
	scanner := &stubScanner{info: makemkv.DiscInfo{
		Name: "THE_MATRIX",
		Titles: []makemkv.TitleInfo{
			{Index: 0, Name: "Featurette", Duration: 1200},
			{Index: 1, Name: "The Matrix", Duration: 8178, Chapters: 24},
			{Index: 3, Name: "Trailer", Duration: 140},
		},
	}}
	insp := NewInspector(scanner, logging.NewNop(), WithMediaProbe(discPresent))

	snap, err := insp.Inspect(context.Background(), 0, "/dev/sr0")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if snap.DiscLabel != "THE_MATRIX" || len(snap.Titles) != 3 {
		t.Fatalf("snapshot = %+v", snap)
	}
	for _, title := range snap.Titles {
		if title.Index == 1 && !title.MainFeature {
			t.Fatal("longest title not flagged as main feature")
		}
		if title.Index != 1 && title.MainFeature {
			t.Fatalf("title %d wrongly flagged", title.Index)
		}
	}

	cached, ok := insp.Latest(0)
	if !ok || cached != snap {
		t.Fatal("snapshot not cached")
	}
	if !snap.HasTitle(3) || snap.HasTitle(2) {
		t.Fatal("HasTitle mismatch")
	}
}

func TestInspectEmptyDriveReturnsEmptyTitles(t *testing.T) {
	scanner := &stubScanner{}
	insp := NewInspector(scanner, logging.NewNop(), WithMediaProbe(discAbsent))

	snap, err := insp.Inspect(context.Background(), 1, "/dev/sr1")
	if err != nil {
		t.Fatalf("empty drive must not error: %v", err)
	}
	if len(snap.Titles) != 0 {
		t.Fatalf("titles = %+v", snap.Titles)
	}
	if scanner.calls != 0 {
		t.Fatalf("makemkvcon should not run for an empty tray, calls=%d", scanner.calls)
	}
	if _, ok := insp.Latest(1); !ok {
		t.Fatal("empty snapshot should still be cached")
	}
}

func TestInspectBlankDiscFromScanner(t *testing.T) {
	// Probe says disc present, makemkvcon finds nothing rippable.
	scanner := &stubScanner{info: makemkv.DiscInfo{Name: "BLANK"}}
	insp := NewInspector(scanner, logging.NewNop(), WithMediaProbe(discPresent))

	snap, err := insp.Inspect(context.Background(), 0, "/dev/sr0")
	if err != nil {
		t.Fatalf("blank disc must not error: %v", err)
	}
	if len(snap.Titles) != 0 {
		t.Fatalf("titles = %+v", snap.Titles)
	}
}

func TestInspectPropagatesTimeout(t *testing.T) {
	scanner := &stubScanner{err: services.Wrap(services.ErrInspectionTimeout, "makemkv", "inventory", "/dev/sr0", context.DeadlineExceeded)}
	insp := NewInspector(scanner, logging.NewNop(), WithMediaProbe(discPresent))

	_, err := insp.Inspect(context.Background(), 0, "/dev/sr0")
	if !errors.Is(err, services.ErrInspectionTimeout) {
		t.Fatalf("expected ErrInspectionTimeout, got %v", err)
	}
	if _, ok := insp.Latest(0); ok {
		t.Fatal("failed inspection must not cache a snapshot")
	}
}

func TestInvalidate(t *testing.T) {
	scanner := &stubScanner{info: makemkv.DiscInfo{Name: "DISC"}}
	insp := NewInspector(scanner, logging.NewNop(), WithMediaProbe(discPresent))

	if _, err := insp.Inspect(context.Background(), 0, "/dev/sr0"); err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	insp.Invalidate(0)
	if _, ok := insp.Latest(0); ok {
		t.Fatal("snapshot should be invalidated")
	}

	if _, err := insp.Inspect(context.Background(), 0, "/dev/sr0"); err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	insp.InvalidateDevice("/dev/sr0")
	if _, ok := insp.Latest(0); ok {
		t.Fatal("snapshot should be invalidated by device")
	}
}
