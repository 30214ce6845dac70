package makemkv

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"ripcord/internal/services"
)

// exitCodeDriveError is makemkvcon's exit status when the drive itself failed.
const exitCodeDriveError = 11

// enumerationTarget asks makemkvcon to list every drive instead of one disc.
const enumerationTarget = "disc:9999"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onStdout func(string)) error
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps makemkvcon robot-mode interactions.
type Client struct {
	binary          string
	infoTimeout     time.Duration
	ripTimeout      time.Duration
	minTitleSeconds int
	exec            Executor
}

// New constructs a MakeMKV client. Timeouts are in seconds; zero disables the
// corresponding deadline.
func New(binary string, infoTimeoutSeconds, ripTimeoutSeconds, minTitleSeconds int, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("makemkv binary required")
	}
	client := &Client{
		binary:          binary,
		infoTimeout:     time.Duration(infoTimeoutSeconds) * time.Second,
		ripTimeout:      time.Duration(ripTimeoutSeconds) * time.Second,
		minTitleSeconds: minTitleSeconds,
		exec:            commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ListDrives enumerates optical drives via the disc:9999 probe.
func (c *Client) ListDrives(ctx context.Context) ([]DriveInfo, error) {
	runCtx := ctx
	if c.infoTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.infoTimeout)
		defer cancel()
	}

	var lines []string
	err := c.exec.Run(runCtx, c.binary, []string{"-r", "--cache=1", "info", enumerationTarget}, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "makemkv", "list drives", "enumeration deadline exceeded", err)
		}
		// Enumeration exits non-zero when no disc is mounted anywhere; the
		// DRV lines are still valid.
		if len(lines) > 0 && len(ParseDriveList(lines)) > 0 {
			return ParseDriveList(lines), nil
		}
		return nil, services.Wrap(services.ErrExternalTool, "makemkv", "list drives", "makemkvcon info failed", err)
	}
	return ParseDriveList(lines), nil
}

// Inventory scans the disc in the given device and returns its title list.
// Titles shorter than the configured minimum are filtered by makemkvcon.
func (c *Client) Inventory(ctx context.Context, device string) (DiscInfo, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return DiscInfo{}, services.Wrap(services.ErrValidation, "makemkv", "inventory", "device required", nil)
	}

	runCtx := ctx
	if c.infoTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.infoTimeout)
		defer cancel()
	}

	args := []string{"-r", "info", "dev:" + device, "--minlength=" + strconv.Itoa(c.minTitleSeconds), "--robot"}
	var lines []string
	err := c.exec.Run(runCtx, c.binary, args, func(line string) {
		lines = append(lines, line)
	})
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return DiscInfo{}, services.Wrap(services.ErrInspectionTimeout, "makemkv", "inventory", device, err)
		}
		return DiscInfo{}, services.Wrap(services.ErrExternalTool, "makemkv", "inventory", device, err)
	}
	return ParseDiscInfo(lines), nil
}

// RipTitle extracts one title from the device into destDir and returns the
// produced file path. Progress callbacks fire for every PRGV line.
func (c *Client) RipTitle(ctx context.Context, device string, titleIndex int, destDir string, progress func(ProgressUpdate)) (string, error) {
	device = strings.TrimSpace(device)
	if device == "" {
		return "", services.Wrap(services.ErrValidation, "makemkv", "rip", "device required", nil)
	}
	if titleIndex < 0 {
		return "", services.Wrap(services.ErrValidation, "makemkv", "rip", fmt.Sprintf("invalid title index %d", titleIndex), nil)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	runCtx := ctx
	if c.ripTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.ripTimeout)
		defer cancel()
	}

	args := []string{
		"--robot", "--progress=-same", "mkv",
		"dev:" + device, strconv.Itoa(titleIndex), destDir,
		"--minlength=" + strconv.Itoa(c.minTitleSeconds),
	}

	var (
		fatalLine string
		lastMsg   Message
	)
	runErr := c.exec.Run(runCtx, c.binary, args, func(line string) {
		if update, ok := ParseProgress(line); ok {
			if progress != nil {
				progress(update)
			}
			return
		}
		if msg, ok := ParseMessage(line); ok {
			lastMsg = msg
		}
		if fatalLine == "" && IsFatalMessage(line) {
			fatalLine = strings.TrimSpace(line)
		}
	})

	operation := fmt.Sprintf("rip title %d", titleIndex)
	if runErr != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "makemkv", operation, device, runErr)
		}
		detail := lastMsg.Text
		if exitCode(runErr) == exitCodeDriveError {
			if detail == "" {
				detail = "drive reported a hardware error; try ejecting and reinserting the disc"
			} else {
				detail += " (drive error; try ejecting and reinserting the disc)"
			}
		}
		return "", services.Wrap(services.ErrExternalTool, "makemkv", operation, detail, runErr)
	}
	if fatalLine != "" {
		// makemkvcon exits zero on some write failures; the MSG output is the
		// only reliable signal.
		return "", services.Wrap(services.ErrExternalTool, "makemkv", operation, fatalLine, nil)
	}

	produced, err := locateOutput(destDir, titleIndex)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "makemkv", operation, "no output file; check disc for read errors", err)
	}
	return produced, nil
}

type exitCoder interface{ ExitCode() int }

func exitCode(err error) int {
	var coder exitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return -1
}

// locateOutput finds the mkv produced for a title. makemkvcon names single
// title rips title_tNN.mkv; fall back to the largest mkv in the directory.
func locateOutput(dir string, titleIndex int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	expected := strings.ToLower(fmt.Sprintf("title_t%02d.mkv", titleIndex))
	var (
		bestPath string
		bestSize int64
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := strings.ToLower(entry.Name())
		if !strings.HasSuffix(name, ".mkv") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if name == expected {
			return path, nil
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.Size() >= bestSize {
			bestPath = path
			bestSize = info.Size()
		}
	}
	if bestPath == "" {
		return "", errors.New("no mkv files produced")
	}
	return bestPath, nil
}

// SanitizeFileName strips characters that are unsafe in output file names.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "")
	return strings.TrimSpace(replacer.Replace(name))
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onStdout func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start command: %w", err)
	}

	var wg sync.WaitGroup
	var scanErr error
	var once sync.Once

	scan := func(r io.Reader, forward func(string)) {
		defer wg.Done()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			forward(scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			once.Do(func() {
				scanErr = err
			})
		}
	}

	// Both pipes feed the same callback from separate goroutines; serialize
	// here so callers can collect lines without their own locking.
	var mu sync.Mutex
	forward := func(line string) {
		mu.Lock()
		defer mu.Unlock()
		if onStdout != nil {
			onStdout(line)
			return
		}
		fmt.Fprintln(os.Stderr, line)
	}

	wg.Add(2)
	go scan(stdout, forward)
	go scan(stderr, forward)

	wg.Wait()
	if scanErr != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("scan output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait command: %w", err)
	}
	return nil
}
