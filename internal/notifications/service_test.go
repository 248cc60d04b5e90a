package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ladle/internal/config"
	"ladle/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventRecipeProcessed, notifications.Payload{"title": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "recipe processed",
			event: notifications.EventRecipeProcessed,
			payload: notifications.Payload{
				"title": "Lemon Tart",
				"kind":  "page",
			},
			expectTitle:    "Ladle - Recipe Ready",
			expectMessage:  "✅ Recipe ready: Lemon Tart (page)",
			expectTags:     "ladle,recipe,processed",
			expectPriority: "high",
		},
		{
			name:  "processing failed",
			event: notifications.EventProcessingFailed,
			payload: notifications.Payload{
				"url":   "https://example.com/tart",
				"error": "fetch: status 503",
			},
			expectTitle:    "Ladle - Processing Failed",
			expectMessage:  "❌ Failed to process https://example.com/tart: fetch: status 503",
			expectTags:     "ladle,recipe,failed",
			expectPriority: "high",
		},
		{
			name:          "daemon started",
			event:         notifications.EventDaemonStarted,
			payload:       notifications.Payload{"bind": "127.0.0.1:8090"},
			expectTitle:   "Ladle - Started",
			expectMessage: "Daemon listening on 127.0.0.1:8090",
			expectTags:    "ladle,daemon,started",
		},
		{
			name:           "test notification",
			event:          notifications.EventTest,
			payload:        nil,
			expectTitle:    "Ladle - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "ladle,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var gotTitle, gotTags, gotPriority, gotBody string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotTitle = r.Header.Get("Title")
				gotTags = r.Header.Get("Tags")
				gotPriority = r.Header.Get("Priority")
				body, _ := io.ReadAll(r.Body)
				gotBody = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.IngestComplete = true
			cfg.Notifications.IngestFailed = true
			svc := notifications.NewService(&cfg)

			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			if gotTitle != tc.expectTitle {
				t.Errorf("title = %q, want %q", gotTitle, tc.expectTitle)
			}
			if gotBody != tc.expectMessage {
				t.Errorf("message = %q, want %q", gotBody, tc.expectMessage)
			}
			if gotTags != tc.expectTags {
				t.Errorf("tags = %q, want %q", gotTags, tc.expectTags)
			}
			if gotPriority != tc.expectPriority {
				t.Errorf("priority = %q, want %q", gotPriority, tc.expectPriority)
			}
		})
	}
}

func TestNtfyServiceHonorsIngestToggles(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.IngestComplete = false
	cfg.Notifications.IngestFailed = false
	svc := notifications.NewService(&cfg)

	if err := svc.Publish(context.Background(), notifications.EventRecipeProcessed, notifications.Payload{"title": "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.EventProcessingFailed, notifications.Payload{"url": "x"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls != 0 {
		t.Fatalf("disabled events reached the endpoint %d times", calls)
	}

	if err := svc.Publish(context.Background(), notifications.EventDaemonStopped, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if calls != 1 {
		t.Fatalf("daemon event should not be gated: %d calls", calls)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic quota exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	err := svc.Publish(context.Background(), notifications.EventTest, nil)
	if err == nil {
		t.Fatal("expected an error from a 429 response")
	}
}
