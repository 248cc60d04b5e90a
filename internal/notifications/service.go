package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ladle/internal/config"
)

const userAgent = "Ladle/0.1.0"

// Event identifies one notifiable pipeline milestone.
type Event string

const (
	EventRecipeProcessed  Event = "recipe_processed"
	EventProcessingFailed Event = "processing_failed"
	EventDaemonStarted    Event = "daemon_started"
	EventDaemonStopped    Event = "daemon_stopped"
	EventTest             Event = "test"
)

// Payload carries the event-specific fields used to format a message.
type Payload map[string]string

// Service publishes pipeline events to the configured notifier.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
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
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		ingestComplete: cfg.Notifications.IngestComplete,
		ingestFailed:   cfg.Notifications.IngestFailed,
	}
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	ingestComplete bool
	ingestFailed   bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, enabled := n.format(event, payload)
	if !enabled {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventRecipeProcessed:
		if !n.ingestComplete {
			return message{}, false
		}
		title := strings.TrimSpace(payload["title"])
		kind := strings.TrimSpace(payload["kind"])
		body := fmt.Sprintf("✅ Recipe ready: %s", title)
		if kind != "" {
			body = fmt.Sprintf("%s (%s)", body, kind)
		}
		return message{
			title:    "Ladle - Recipe Ready",
			body:     body,
			tags:     []string{"ladle", "recipe", "processed"},
			priority: "high",
		}, true
	case EventProcessingFailed:
		if !n.ingestFailed {
			return message{}, false
		}
		url := strings.TrimSpace(payload["url"])
		reason := strings.TrimSpace(payload["error"])
		if reason == "" {
			reason = "unknown"
		}
		return message{
			title:    "Ladle - Processing Failed",
			body:     fmt.Sprintf("❌ Failed to process %s: %s", url, reason),
			tags:     []string{"ladle", "recipe", "failed"},
			priority: "high",
		}, true
	case EventDaemonStarted:
		return message{
			title: "Ladle - Started",
			body:  fmt.Sprintf("Daemon listening on %s", strings.TrimSpace(payload["bind"])),
			tags:  []string{"ladle", "daemon", "started"},
		}, true
	case EventDaemonStopped:
		return message{
			title: "Ladle - Stopped",
			body:  "Daemon shut down cleanly",
			tags:  []string{"ladle", "daemon", "stopped"},
		}, true
	case EventTest:
		return message{
			title:    "Ladle - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"ladle", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

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
