package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/foxseedlab/scamwatch/internal/alert"
)

type alertPayload struct {
	RecordID  string    `json:"record_id"`
	Text      string    `json:"text"`
	RiskScore int       `json:"risk_score"`
	Advice    string    `json:"advice"`
	CreatedAt time.Time `json:"created_at"`
	Message   string    `json:"message"`
}

// HTTPNotifier posts alerts as JSON to a webhook URL.
type HTTPNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewHTTPNotifier(webhookURL string, client *http.Client) *HTTPNotifier {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPNotifier{
		webhookURL: webhookURL,
		client:     client,
	}
}

func (n *HTTPNotifier) Name() string { return "webhook" }

func (n *HTTPNotifier) Enabled() bool { return n.webhookURL != "" }

func (n *HTTPNotifier) Notify(ctx context.Context, a alert.Alert) error {
	if n.webhookURL == "" {
		return nil
	}

	b, err := json.Marshal(alertPayload{
		RecordID:  a.RecordID,
		Text:      a.Text,
		RiskScore: a.RiskScore,
		Advice:    a.Advice,
		CreatedAt: a.CreatedAt,
		Message:   a.Message(nil),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
