package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebhookSend(t *testing.T) {
	var received webhookPayload
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	if err != nil {
		t.Fatalf("NewWebhookNotifier() error = %v", err)
	}

	if err := n.Send(context.Background(), testAlert(), ""); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if received.Event != "alert.triggered" || received.Alert == nil || received.Alert.ID != "alert-1" {
		t.Errorf("payload = %+v", received)
	}
	if gotAuth != "Bearer token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestWebhookRecipientOverridesURL(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{URL: "https://unreachable.invalid"})
	if err != nil {
		t.Fatalf("NewWebhookNotifier() error = %v", err)
	}
	if err := n.Send(context.Background(), testAlert(), srv.URL); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !hit {
		t.Error("recipient URL was not used")
	}
}

func TestWebhookConfigValidate(t *testing.T) {
	if err := (&WebhookConfig{}).Validate(); err == nil {
		t.Error("empty URL must be rejected")
	}
	if err := (&WebhookConfig{URL: "ftp://x"}).Validate(); err == nil {
		t.Error("non-http scheme must be rejected")
	}
	if err := (&WebhookConfig{URL: "https://example.com/hook"}).Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
