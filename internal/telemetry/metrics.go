// Package telemetry holds the counters recorded by the session controller
// and the risk pipeline. A nil *Metrics records nothing.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/foxseedlab/scamwatch"

type Metrics struct {
	sessionStarts   metric.Int64Counter
	sessionRestarts metric.Int64Counter
	sessionFailures metric.Int64Counter
	finals          metric.Int64Counter
	classifications metric.Int64Counter
	advisories      metric.Int64Counter
	alerts          metric.Int64Counter
}

// New builds the instruments from the global meter provider.
func New() (*Metrics, error) {
	return NewWithMeter(otel.Meter(meterName))
}

func NewWithMeter(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.sessionStarts, "scamwatch.session.starts", "Recognition sessions started"},
		{&m.sessionRestarts, "scamwatch.session.restarts", "Native engine restarts between utterances"},
		{&m.sessionFailures, "scamwatch.session.failures", "Sessions ended by an unrecoverable error"},
		{&m.finals, "scamwatch.transcripts.final", "Final transcripts stored"},
		{&m.classifications, "scamwatch.risk.classifications", "Fast classification calls"},
		{&m.advisories, "scamwatch.risk.advisories", "Advisory generation calls"},
		{&m.alerts, "scamwatch.alerts.sent", "High risk alerts delivered"},
	}
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
	}
	return &m, nil
}

func add(c metric.Int64Counter, attrs ...attribute.KeyValue) {
	c.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) SessionStarted(backend string) {
	if m == nil {
		return
	}
	add(m.sessionStarts, attribute.String("backend", backend))
}

func (m *Metrics) SessionRestarted() {
	if m == nil {
		return
	}
	add(m.sessionRestarts)
}

func (m *Metrics) SessionFailed(reason string) {
	if m == nil {
		return
	}
	add(m.sessionFailures, attribute.String("reason", reason))
}

func (m *Metrics) FinalTranscript() {
	if m == nil {
		return
	}
	add(m.finals)
}

// Classified records a phase one outcome: "ok" or "error".
func (m *Metrics) Classified(outcome string) {
	if m == nil {
		return
	}
	add(m.classifications, attribute.String("outcome", outcome))
}

func (m *Metrics) Advised(mode, outcome string) {
	if m == nil {
		return
	}
	add(m.advisories, attribute.String("mode", mode), attribute.String("outcome", outcome))
}

func (m *Metrics) AlertSent(notifier, outcome string) {
	if m == nil {
		return
	}
	add(m.alerts, attribute.String("notifier", notifier), attribute.String("outcome", outcome))
}
