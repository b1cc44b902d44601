package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/foxseedlab/scamwatch/internal/alert"
)

func testAlert() alert.Alert {
	return alert.Alert{
		RecordID:  "rec-1",
		Text:      "附上銀行帳號立即轉帳",
		RiskScore: 82,
		Advice:    "請勿轉帳",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNotify_EmptyWebhookURL(t *testing.T) {
	n := NewHTTPNotifier("", nil)
	if n.Enabled() {
		t.Fatal("notifier without url must be disabled")
	}
	if err := n.Notify(context.Background(), testAlert()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestNotify_Success(t *testing.T) {
	var got alertPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL, server.Client())
	if err := n.Notify(context.Background(), testAlert()); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.RecordID != "rec-1" || got.RiskScore != 82 || got.Advice != "請勿轉帳" {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if !strings.Contains(got.Message, "風險分數：82") {
		t.Fatalf("unexpected message: %s", got.Message)
	}
}

func TestNotify_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewHTTPNotifier(server.URL, server.Client())
	if err := n.Notify(context.Background(), testAlert()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
