package makemkv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ripcord/internal/services"
)

type stubExecutor struct {
	lines    []string
	err      error
	lastArgs []string
	write    func(args []string)
}

func (s *stubExecutor) Run(_ context.Context, _ string, args []string, onStdout func(string)) error {
	s.lastArgs = args
	if s.write != nil {
		s.write(args)
	}
	for _, line := range s.lines {
		onStdout(line)
	}
	return s.err
}

type exitErr struct{ code int }

func (e exitErr) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e exitErr) ExitCode() int { return e.code }

func TestListDrivesParsesOutput(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		`DRV:0,2,999,12,"HL-DT-ST BD-RE","MOVIE","/dev/sr0"`,
	}}
	client, err := New("makemkvcon", 5, 5, 600, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	drives, err := client.ListDrives(context.Background())
	if err != nil {
		t.Fatalf("ListDrives: %v", err)
	}
	if len(drives) != 1 || drives[0].Device != "/dev/sr0" {
		t.Fatalf("unexpected drives %+v", drives)
	}
	if exec.lastArgs[len(exec.lastArgs)-1] != "disc:9999" {
		t.Fatalf("enumeration args = %v", exec.lastArgs)
	}
}

func TestListDrivesToleratesNonZeroExitWithDrives(t *testing.T) {
	exec := &stubExecutor{
		lines: []string{`DRV:0,1,999,1,"PIONEER","","/dev/sr0"`},
		err:   exitErr{code: 1},
	}
	client, _ := New("makemkvcon", 5, 5, 600, WithExecutor(exec))
	drives, err := client.ListDrives(context.Background())
	if err != nil {
		t.Fatalf("expected drives despite exit code, got %v", err)
	}
	if len(drives) != 1 {
		t.Fatalf("drives = %+v", drives)
	}
}

func TestInventoryPassesMinLength(t *testing.T) {
	exec := &stubExecutor{lines: []string{
		`CINFO:2,0,"DISC"`,
		`TINFO:0,9,0,"1:30:00"`,
	}}
	client, _ := New("makemkvcon", 5, 5, 900, WithExecutor(exec))
	info, err := client.Inventory(context.Background(), "/dev/sr0")
	if err != nil {
		t.Fatalf("Inventory: %v", err)
	}
	if info.Name != "DISC" || len(info.Titles) != 1 {
		t.Fatalf("unexpected info %+v", info)
	}
	joined := strings.Join(exec.lastArgs, " ")
	if !strings.Contains(joined, "--minlength=900") || !strings.Contains(joined, "dev:/dev/sr0") {
		t.Fatalf("args = %v", exec.lastArgs)
	}
}

func TestInventoryFailureMapsToExternalTool(t *testing.T) {
	exec := &stubExecutor{err: errors.New("wait command: exit status 2")}
	client, _ := New("makemkvcon", 5, 5, 600, WithExecutor(exec))
	_, err := client.Inventory(context.Background(), "/dev/sr0")
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestRipTitleReturnsProducedFile(t *testing.T) {
	dest := t.TempDir()
	exec := &stubExecutor{
		lines: []string{
			"PRGV:0,16384,65536",
			"PRGV:0,65536,65536",
			`MSG:5005,0,0,"Copy complete","Copy complete"`,
		},
		write: func([]string) {
			if err := os.WriteFile(filepath.Join(dest, "title_t02.mkv"), []byte("data"), 0o644); err != nil {
				t.Fatalf("write output: %v", err)
			}
		},
	}
	client, _ := New("makemkvcon", 5, 5, 600, WithExecutor(exec))

	var percents []float64
	path, err := client.RipTitle(context.Background(), "/dev/sr0", 2, dest, func(update ProgressUpdate) {
		percents = append(percents, update.Percent)
	})
	if err != nil {
		t.Fatalf("RipTitle: %v", err)
	}
	if filepath.Base(path) != "title_t02.mkv" {
		t.Fatalf("path = %q", path)
	}
	if len(percents) != 2 || percents[1] != 100 {
		t.Fatalf("progress = %v", percents)
	}
}

func TestRipTitleFatalMessageFailsDespiteZeroExit(t *testing.T) {
	dest := t.TempDir()
	exec := &stubExecutor{
		lines: []string{`MSG:5003,0,2,"Failed to save title 2 to file /x.mkv","..."`},
		write: func([]string) {
			_ = os.WriteFile(filepath.Join(dest, "title_t02.mkv"), []byte("partial"), 0o644)
		},
	}
	client, _ := New("makemkvcon", 5, 5, 600, WithExecutor(exec))
	_, err := client.RipTitle(context.Background(), "/dev/sr0", 2, dest, nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "Failed to save") {
		t.Fatalf("fatal line missing from error: %v", err)
	}
}

func TestRipTitleDriveErrorHint(t *testing.T) {
	exec := &stubExecutor{err: exitErr{code: exitCodeDriveError}}
	client, _ := New("makemkvcon", 5, 5, 600, WithExecutor(exec))
	_, err := client.RipTitle(context.Background(), "/dev/sr0", 0, t.TempDir(), nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "ejecting") {
		t.Fatalf("expected drive error hint, got %v", err)
	}
}

func TestRipTitleNoOutput(t *testing.T) {
	exec := &stubExecutor{}
	client, _ := New("makemkvcon", 5, 5, 600, WithExecutor(exec))
	_, err := client.RipTitle(context.Background(), "/dev/sr0", 0, t.TempDir(), nil)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := SanitizeFileName(`A/B\C:D*E?F"G<H>I|J`); got != "A-B-C-D-EFGHIJ" {
		t.Fatalf("sanitized = %q", got)
	}
	if got := SanitizeFileName("  "); got != "" {
		t.Fatalf("blank should stay blank, got %q", got)
	}
}

func TestCommandExecutorSerializesCallback(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}

	// Interleaved stdout and stderr writers must not corrupt a collecting
	// callback; every emitted line has to arrive exactly once.
	script := `i=0; while [ $i -lt 200 ]; do echo "out $i"; echo "err $i" 1>&2; i=$((i+1)); done`
	var lines []string
	err := commandExecutor{}.Run(context.Background(), "/bin/sh", []string{"-c", script}, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(lines) != 400 {
		t.Fatalf("collected %d lines, want 400", len(lines))
	}
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if _, dup := seen[line]; dup {
			t.Fatalf("line %q delivered twice", line)
		}
		seen[line] = struct{}{}
	}
}
