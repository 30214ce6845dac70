// Package notifications pushes rip lifecycle events to an ntfy topic.
package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ripcord/internal/config"
)

const userAgent = "Ripcord/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyDiscInserted(ctx context.Context, discLabel, device string) error
	NotifyRipStarted(ctx context.Context, discLabel string, titleCount int) error
	NotifyRipCompleted(ctx context.Context, discLabel string, fileCount int, duration time.Duration) error
	NotifyRipFailed(ctx context.Context, discLabel, reason string) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		ripEvents:  cfg.Notifications.Rip,
		errorAlert: cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	ripEvents  bool
	errorAlert bool
}

func (n *ntfyService) NotifyDiscInserted(ctx context.Context, discLabel, device string) error {
	if !n.ripEvents {
		return nil
	}
	discLabel = strings.TrimSpace(discLabel)
	if discLabel == "" {
		discLabel = "unlabeled disc"
	}
	data := payload{
		title:   "Ripcord - Disc Inserted",
		message: fmt.Sprintf("Disc inserted: %s (%s)", discLabel, device),
		tags:    []string{"ripcord", "disc", "inserted"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRipStarted(ctx context.Context, discLabel string, titleCount int) error {
	if !n.ripEvents {
		return nil
	}
	data := payload{
		title:   "Ripcord - Rip Started",
		message: fmt.Sprintf("Started ripping %d title(s) from %s", titleCount, strings.TrimSpace(discLabel)),
		tags:    []string{"ripcord", "rip", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRipCompleted(ctx context.Context, discLabel string, fileCount int, duration time.Duration) error {
	if !n.ripEvents {
		return nil
	}
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	data := payload{
		title:   "Ripcord - Rip Complete",
		message: fmt.Sprintf("Rip complete: %s, %d file(s) in %s", strings.TrimSpace(discLabel), fileCount, duration),
		tags:    []string{"ripcord", "rip", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRipFailed(ctx context.Context, discLabel, reason string) error {
	if !n.errorAlert {
		return nil
	}
	data := payload{
		title:    "Ripcord - Rip Failed",
		message:  fmt.Sprintf("Rip failed: %s\n%s", strings.TrimSpace(discLabel), strings.TrimSpace(reason)),
		tags:     []string{"ripcord", "rip", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errorAlert {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Ripcord - Error",
		message:  builder.String(),
		tags:     []string{"ripcord", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Ripcord - Test",
		message:  "Notification system test",
		tags:     []string{"ripcord", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyDiscInserted(context.Context, string, string) error { return nil }
func (noopService) NotifyRipStarted(context.Context, string, int) error      { return nil }
func (noopService) NotifyRipCompleted(context.Context, string, int, time.Duration) error {
	return nil
}
func (noopService) NotifyRipFailed(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error      { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }
