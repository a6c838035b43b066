package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"imgvault/internal/config"
)

const userAgent = "imgvault/0.1"

// Service defines the alerts imgvault can raise.
type Service interface {
	NotifyDataLossRisk(ctx context.Context, assetID int64, detail string) error
	NotifyBulkCompleted(ctx context.Context, run BulkRun) error
	NotifyError(ctx context.Context, err error, context string) error
	TestNotification(ctx context.Context) error
}

// BulkRun summarizes a finished bulk optimize or restore pass.
type BulkRun struct {
	Operation string
	Succeeded int
	Failed    int
	Savings   int64
	Duration  time.Duration
	Reason    string
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc delivers anywhere.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyDataLossRisk(ctx context.Context, assetID int64, detail string) error {
	message := fmt.Sprintf("Asset %d has no file at its live path", assetID)
	if detail = strings.TrimSpace(detail); detail != "" {
		message += "\n" + detail
	}
	return n.send(ctx, payload{
		title:    "imgvault - Original Stranded",
		message:  message,
		tags:     []string{"imgvault", "warning", "data_loss_risk"},
		priority: "urgent",
	})
}

func (n *ntfyService) NotifyBulkCompleted(ctx context.Context, run BulkRun) error {
	op := strings.TrimSpace(run.Operation)
	if op == "" {
		op = "bulk"
	}
	duration := run.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := fmt.Sprintf("imgvault - %s complete", op)
	message := fmt.Sprintf("%d succeeded in %s", run.Succeeded, duration)
	if run.Failed > 0 {
		title += " (with errors)"
		message = fmt.Sprintf("%d succeeded, %d failed in %s", run.Succeeded, run.Failed, duration)
	}
	if run.Savings != 0 {
		sign := ""
		savings := run.Savings
		if savings < 0 {
			sign, savings = "-", -savings
		}
		message += fmt.Sprintf("\nSaved %s%s", sign, humanize.IBytes(uint64(savings)))
	}
	if reason := strings.TrimSpace(run.Reason); reason != "" && reason != "done" {
		message += "\nStopped: " + reason
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"imgvault", op, "completed"},
	})
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" during ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "imgvault - Error",
		message:  builder.String(),
		tags:     []string{"imgvault", "error"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "imgvault - Test",
		message:  "Notification delivery works",
		tags:     []string{"imgvault", "test"},
		priority: "low",
	})
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

func (noopService) NotifyDataLossRisk(context.Context, int64, string) error { return nil }
func (noopService) NotifyBulkCompleted(context.Context, BulkRun) error      { return nil }
func (noopService) NotifyError(context.Context, error, string) error        { return nil }
func (noopService) TestNotification(context.Context) error                  { return nil }
