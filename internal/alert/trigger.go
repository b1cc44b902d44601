// Package alert tracks the highest-risk transcript and notifies external
// destinations once its advice is ready.
package alert

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/scamwatch/internal/signal"
	"github.com/foxseedlab/scamwatch/internal/telemetry"
	"github.com/foxseedlab/scamwatch/internal/transcript"
)

const (
	DefaultThreshold = 70
	notifyTimeout    = 20 * time.Second
)

// Trigger watches store snapshots. The highest-scored record is published
// as a signal; when it is above the threshold with finished advice, every
// notifier is called once for that record and advice text.
type Trigger struct {
	threshold int
	notifiers []Notifier
	metrics   *telemetry.Metrics

	highest *signal.Value[transcript.Record]

	mu   sync.Mutex
	sent map[string]string

	wg sync.WaitGroup
}

func NewTrigger(threshold int, notifiers []Notifier, metrics *telemetry.Metrics) *Trigger {
	return &Trigger{
		threshold: threshold,
		notifiers: notifiers,
		metrics:   metrics,
		highest:   signal.New(transcript.Record{}),
		sent:      make(map[string]string),
	}
}

// Snapshotter is the read side of the transcript store.
type Snapshotter interface {
	Snapshot() []transcript.Record
}

// Refresh evaluates the current snapshot of src. The snapshot is read
// under the trigger lock, so concurrent callers can never move the
// highest-risk signal back to an older state.
func (t *Trigger) Refresh(src Snapshotter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observeLocked(src.Snapshot())
}

// Observe evaluates one snapshot.
func (t *Trigger) Observe(records []transcript.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observeLocked(records)
}

// Prime adopts records that existed before the trigger was attached, such
// as those loaded from a persistent store. Their current advice counts as
// already delivered.
func (t *Trigger) Prime(records []transcript.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	top, _ := highestRisk(records)
	t.highest.Set(top)
	for _, r := range records {
		if t.ready(r) {
			t.sent[r.ID] = *r.Advice
		}
	}
}

func (t *Trigger) observeLocked(records []transcript.Record) {
	top, found := highestRisk(records)
	t.highest.Set(top)

	live := make(map[string]struct{}, len(records))
	for _, r := range records {
		live[r.ID] = struct{}{}
	}
	for id := range t.sent {
		if _, ok := live[id]; !ok {
			delete(t.sent, id)
		}
	}
	if !found || !t.ready(top) || t.sent[top.ID] == *top.Advice {
		return
	}
	t.sent[top.ID] = *top.Advice

	a := fromRecord(top)
	slog.Info("high risk transcript alert", "record_id", a.RecordID, "risk_score", a.RiskScore, "notifiers", len(t.notifiers))
	for _, n := range t.notifiers {
		t.wg.Add(1)
		go func(n Notifier) {
			defer t.wg.Done()
			t.notify(n, a)
		}(n)
	}
}

func (t *Trigger) ready(rec transcript.Record) bool {
	return rec.RiskScore != nil && *rec.RiskScore > t.threshold &&
		!rec.IsAdviceLoading && rec.Advice != nil && strings.TrimSpace(*rec.Advice) != ""
}

func (t *Trigger) notify(n Notifier, a Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := n.Notify(ctx, a); err != nil {
		t.metrics.AlertSent(n.Name(), "error")
		slog.Error("failed to deliver alert", "error", err, "notifier", n.Name(), "record_id", a.RecordID)
		return
	}
	t.metrics.AlertSent(n.Name(), "ok")
}

// Highest returns the current highest-risk record; ok is false when no
// record has been scored.
func (t *Trigger) Highest() (transcript.Record, bool) {
	rec := t.highest.Get()
	return rec, rec.ID != ""
}

func (t *Trigger) SubscribeHighest() (<-chan transcript.Record, func()) {
	return t.highest.Subscribe()
}

// Wait blocks until in-flight notifications finish.
func (t *Trigger) Wait() {
	t.wg.Wait()
}

// highestRisk picks the scored record with the largest score. Ties go to
// the record that comes first, which is the newest in store order.
func highestRisk(records []transcript.Record) (transcript.Record, bool) {
	var (
		best  transcript.Record
		found bool
	)
	for _, r := range records {
		if r.RiskScore == nil {
			continue
		}
		if !found || *r.RiskScore > *best.RiskScore {
			best, found = r, true
		}
	}
	return best, found
}
