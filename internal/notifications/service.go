package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ferry/internal/config"
)

const userAgent = "ferry/0.1"

// Event identifies a notification type.
type Event string

const (
	EventRestoreCompleted Event = "restore_completed"
	EventUploadLost       Event = "upload_lost"
	EventTest             Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: cfg.Notifications.NtfyTopic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRestoreCompleted:
		succeeded := intValue(payload, "succeeded")
		failed := intValue(payload, "failed")
		duration := durationValue(payload, "duration").Round(time.Second)
		if failed == 0 {
			return message{
				title: "ferry - Restore Complete",
				body:  fmt.Sprintf("Resumed %d pending upload(s) in %s", succeeded, duration),
				tags:  []string{"ferry", "restore", "completed"},
			}, true
		}
		return message{
			title:    "ferry - Restore Incomplete",
			body:     fmt.Sprintf("Resumed %d upload(s); %d failed and stay queued", succeeded, failed),
			tags:     []string{"ferry", "restore", "failed"},
			priority: "high",
		}, true
	case EventUploadLost:
		name := stringValue(payload, "name")
		if name == "" {
			name = "unnamed item"
		}
		body := "Upload failed and will not be retried: " + name
		if reason := stringValue(payload, "error"); reason != "" {
			body += "\n" + reason
		}
		return message{
			title:    "ferry - Upload Lost",
			body:     body,
			tags:     []string{"ferry", "upload", "lost"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "ferry - Test",
			body:     "Notification system test",
			tags:     []string{"ferry", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
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

func stringValue(payload Payload, key string) string {
	if value, ok := payload[key]; ok && value != nil {
		return strings.TrimSpace(fmt.Sprint(value))
	}
	return ""
}

func intValue(payload Payload, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

func durationValue(payload Payload, key string) time.Duration {
	if v, ok := payload[key].(time.Duration); ok && v > 0 {
		return v
	}
	return 0
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
