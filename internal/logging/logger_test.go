package logging

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ripcord/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestPrettyHandlerPromotesComponent(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "out.log")
	logger, err := New(Options{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	NewComponentLogger(logger, "executor").Info("job started", Int64(FieldJobID, 7))

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "executor: job started") {
		t.Fatalf("component not promoted into message: %q", line)
	}
	if !strings.Contains(line, "job_id=7") {
		t.Fatalf("job_id attribute missing: %q", line)
	}
}

func TestWithContextAddsJobAndDriveFields(t *testing.T) {
	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithDriveID(ctx, 1)
	ctx = services.WithRequestID(ctx, "req-abc")

	fields := ContextFields(ctx)
	keys := make(map[string]bool, len(fields))
	for _, f := range fields {
		keys[f.Key] = true
	}
	for _, want := range []string{FieldJobID, FieldDriveID, FieldCorrelationID} {
		if !keys[want] {
			t.Fatalf("missing context field %s in %v", want, keys)
		}
	}
}

func TestCleanupOldLogsRespectsExclusions(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "ripcord-old.log")
	keep := filepath.Join(dir, "ripcord.log")
	for _, path := range []string{old, keep} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		stale := time.Now().AddDate(0, 0, -30)
		if err := os.Chtimes(path, stale, stale); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	CleanupOldLogs(NewNop(), 7, RetentionTarget{Dir: dir, Pattern: "*.log", Exclude: []string{keep}})

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s pruned, err=%v", old, err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Fatalf("excluded file should remain: %v", err)
	}
}
