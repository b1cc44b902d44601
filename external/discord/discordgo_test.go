package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/foxseedlab/scamwatch/internal/alert"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestNotifier(t *testing.T, rt roundTripFunc) *Notifier {
	t.Helper()
	n, err := NewNotifier("test-token", "chan-1")
	if err != nil {
		t.Fatalf("failed to create notifier: %v", err)
	}
	n.session.Client = &http.Client{Transport: rt}
	n.location = time.UTC
	return n
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestNotify_PostsToChannel(t *testing.T) {
	var sent discordgo.MessageSend
	n := newTestNotifier(t, func(req *http.Request) (*http.Response, error) {
		if req.Method != http.MethodPost || !strings.HasSuffix(req.URL.Path, "/channels/chan-1/messages") {
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
		}
		if req.Header.Get("Authorization") != "Bot test-token" {
			t.Fatalf("unexpected authorization header: %q", req.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(req.Body).Decode(&sent); err != nil {
			t.Fatalf("failed to decode message: %v", err)
		}
		return jsonResponse(http.StatusOK, `{"id":"m-1","channel_id":"chan-1"}`), nil
	})

	err := n.Notify(context.Background(), alert.Alert{
		RecordID:  "rec-1",
		Text:      "附上銀行帳號立即轉帳",
		RiskScore: 92,
		Advice:    "請勿轉帳",
		CreatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sent.Content, "風險分數：92") {
		t.Fatalf("unexpected content: %q", sent.Content)
	}
	if len(sent.Embeds) != 1 || sent.Embeds[0].Color != 0xd32f2f || sent.Embeds[0].Fields[1].Value != "請勿轉帳" {
		t.Fatalf("unexpected embed: %+v", sent.Embeds)
	}
}

func TestNotify_RESTErrorCarriesStatus(t *testing.T) {
	n := newTestNotifier(t, func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusForbidden, `{"message":"Missing Access","code":50001}`), nil
	})
	err := n.Notify(context.Background(), alert.Alert{RecordID: "rec-1", RiskScore: 80})
	if err == nil || !strings.Contains(err.Error(), "status 403") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestNotify_DisabledWithoutCredentials(t *testing.T) {
	n, err := NewNotifier("", "chan-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.Enabled() {
		t.Fatal("notifier without token must be disabled")
	}
	if err := n.Notify(context.Background(), alert.Alert{}); err != nil {
		t.Fatalf("disabled notifier must be a no-op, got %v", err)
	}
}
