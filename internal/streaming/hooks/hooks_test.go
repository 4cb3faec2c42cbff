package hooks

import (
	"context"
	"testing"
	"time"
)

func TestEvent(t *testing.T) {
	event := NewEvent(EventClientAdmitted, 3).
		WithData("peer_addr", "192.168.1.100:5000").
		WithData("resolution", "720p")

	if event.Type != EventClientAdmitted {
		t.Errorf("expected event type %s, got %s", EventClientAdmitted, event.Type)
	}
	if event.ClientID != 3 {
		t.Errorf("expected client id 3, got %d", event.ClientID)
	}
	if event.Data["resolution"] != "720p" {
		t.Errorf("expected resolution 720p, got %v", event.Data["resolution"])
	}
	if got, want := event.String(), "client_admitted:3"; got != want {
		t.Errorf("expected string %q, got %q", want, got)
	}
}

func TestShellHook(t *testing.T) {
	hook := NewShellHook("test-hook", "/bin/true", 10*time.Second)
	if hook.Type() != "shell" {
		t.Errorf("expected hook type 'shell', got %s", hook.Type())
	}
	if hook.ID() != "test-hook" {
		t.Errorf("expected hook ID 'test-hook', got %s", hook.ID())
	}
}

func TestManager(t *testing.T) {
	config := DefaultConfig()
	manager := NewManager(config, nil)

	hook := NewShellHook("test", "/bin/true", 10*time.Second)
	if err := manager.RegisterHook(EventClientAdmitted, hook); err != nil {
		t.Fatalf("failed to register hook: %v", err)
	}

	stats := manager.Stats()
	if stats["total_hooks"] != 1 {
		t.Errorf("expected 1 total hook, got %v", stats["total_hooks"])
	}

	manager.TriggerEvent(context.Background(), *NewEvent(EventClientAdmitted, 1))
	if err := manager.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestStdioHook(t *testing.T) {
	hook := NewStdioHook("stdio-test", "json")
	if hook.Type() != "stdio" {
		t.Errorf("expected hook type 'stdio', got %s", hook.Type())
	}
	if hook.format != "json" {
		t.Errorf("expected format 'json', got %s", hook.format)
	}
}

func TestWebhookHook(t *testing.T) {
	hook := NewWebhookHook("webhook-test", "https://example.com/webhook", 30*time.Second)
	if hook.Type() != "webhook" {
		t.Errorf("expected hook type 'webhook', got %s", hook.Type())
	}
	if hook.url != "https://example.com/webhook" {
		t.Errorf("expected URL 'https://example.com/webhook', got %s", hook.url)
	}

	hook.AddHeader("Authorization", "Bearer token")
	if hook.headers["Authorization"] != "Bearer token" {
		t.Errorf("expected Authorization header, got %s", hook.headers["Authorization"])
	}
}
