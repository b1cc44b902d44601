package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/foxseedlab/scamwatch/internal/alert"
	"github.com/nats-io/nats.go"
)

const DefaultSubject = "scamwatch.alert"

type event struct {
	RecordID  string    `json:"record_id"`
	Text      string    `json:"text"`
	RiskScore int       `json:"risk_score"`
	Advice    string    `json:"advice"`
	CreatedAt time.Time `json:"created_at"`
}

// publisher is the subset of *nats.Conn the notifier needs.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
}

// NATSNotifier publishes alerts as JSON events on a subject.
type NATSNotifier struct {
	conn    *nats.Conn
	pub     publisher
	subject string
}

func NewNATSNotifier(url, subject string, timeout time.Duration) (*NATSNotifier, error) {
	if url == "" {
		return &NATSNotifier{}, nil
	}
	if subject == "" {
		subject = DefaultSubject
	}
	opts := []nats.Option{nats.Name("scamwatch")}
	if timeout > 0 {
		opts = append(opts, nats.Timeout(timeout))
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSNotifier{conn: conn, pub: conn, subject: subject}, nil
}

func (n *NATSNotifier) Name() string { return "nats" }

func (n *NATSNotifier) Enabled() bool { return n.pub != nil }

func (n *NATSNotifier) Notify(ctx context.Context, a alert.Alert) error {
	if n.pub == nil {
		return nil
	}
	b, err := json.Marshal(event{
		RecordID:  a.RecordID,
		Text:      a.Text,
		RiskScore: a.RiskScore,
		Advice:    a.Advice,
		CreatedAt: a.CreatedAt,
	})
	if err != nil {
		return err
	}
	if err := n.pub.Publish(n.subject, b); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return n.pub.FlushWithContext(ctx)
}

// Close drains pending messages and closes the connection.
func (n *NATSNotifier) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}
