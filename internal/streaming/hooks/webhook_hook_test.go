package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookHookExecute(t *testing.T) {
	var received Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type, got %s", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hook := NewWebhookHook("wh", srv.URL, 2*time.Second)
	event := *NewEvent(EventStreamingStarted, 7).WithData("transport", "UDP")

	if err := hook.Execute(context.Background(), event); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if received.ClientID != 7 {
		t.Fatalf("expected client_id 7, got %d", received.ClientID)
	}
	if received.Data["transport"] != "UDP" {
		t.Fatalf("expected transport UDP, got %v", received.Data["transport"])
	}
}

func TestWebhookHookNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	hook := NewWebhookHook("wh-fail", srv.URL, 2*time.Second)
	event := *NewEvent(EventClientRejected, 1)
	if err := hook.Execute(context.Background(), event); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}
