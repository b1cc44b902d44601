package risk

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/foxseedlab/scamwatch/internal/telemetry"
	"github.com/foxseedlab/scamwatch/internal/transcript"
)

const (
	defaultTimeout = 90 * time.Second
	writeTimeout   = 15 * time.Second
)

// RecordWriter applies evaluation results. Writes carry the revision the
// result was computed for.
type RecordWriter interface {
	SetRisk(ctx context.Context, id string, revision uint64, score int) error
	SetAdviceLoading(ctx context.Context, id string, revision uint64, loading bool) error
	SetAdvice(ctx context.Context, id string, revision uint64, advice string) error
}

type Settings struct {
	Threshold int
	MinChars  int
	Timeout   time.Duration
}

// Pipeline evaluates every new or edited transcript on its own goroutine.
// Evaluations are never cancelled once started; results for records that
// were deleted or edited in the meantime are dropped by the store.
type Pipeline struct {
	writer   RecordWriter
	settings Settings
	metrics  *telemetry.Metrics

	mu      sync.RWMutex
	clients Clients

	wg sync.WaitGroup
}

func NewPipeline(writer RecordWriter, clients Clients, settings Settings, metrics *telemetry.Metrics) *Pipeline {
	if settings.MinChars <= 0 {
		settings.MinChars = DefaultMinChars
	}
	if settings.Timeout <= 0 {
		settings.Timeout = defaultTimeout
	}
	return &Pipeline{writer: writer, clients: clients, settings: settings, metrics: metrics}
}

// SetClients replaces the endpoints used by evaluations started afterwards.
func (p *Pipeline) SetClients(c Clients) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients = c
}

func (p *Pipeline) currentClients() Clients {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clients
}

// HandleEvent is the store observer.
func (p *Pipeline) HandleEvent(ev transcript.Event) {
	switch ev.Kind {
	case transcript.EventInserted, transcript.EventTextUpdated:
	default:
		return
	}
	if !p.Eligible(ev.Record) {
		return
	}
	rec := ev.Record
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.evaluate(rec)
	}()
}

// Eligible reports whether a record should be classified.
func (p *Pipeline) Eligible(rec transcript.Record) bool {
	if rec.Scored() {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(rec.Text)) >= p.settings.MinChars
}

// Wait blocks until every started evaluation has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) evaluate(rec transcript.Record) {
	clients := p.currentClients()
	if clients.Classifier == nil {
		slog.Warn("no classifier configured; transcript left unscored", "record_id", rec.ID)
		return
	}

	score, err := p.classify(clients.Classifier, rec)
	if err != nil {
		p.metrics.Classified("error")
		slog.Error("risk classification failed", "error", err, "record_id", rec.ID)
		return
	}
	p.metrics.Classified("ok")

	if !p.write(rec, "risk", func(ctx context.Context) error {
		return p.writer.SetRisk(ctx, rec.ID, rec.Revision, score)
	}) {
		return
	}
	slog.Info("transcript classified", "record_id", rec.ID, "risk_score", score)

	if score <= p.settings.Threshold {
		return
	}
	if clients.Advisor == nil {
		slog.Warn("no advisor configured; skipping advice", "record_id", rec.ID, "risk_score", score)
		return
	}
	if !p.write(rec, "loading", func(ctx context.Context) error {
		return p.writer.SetAdviceLoading(ctx, rec.ID, rec.Revision, true)
	}) {
		return
	}

	advice, err := p.advise(clients.Advisor, rec)
	if err != nil {
		p.metrics.Advised(clients.Advisor.Mode(), "error")
		slog.Error("advice generation failed", "error", err, "record_id", rec.ID, "mode", clients.Advisor.Mode())
		advice = AdviceForError(err)
	} else {
		p.metrics.Advised(clients.Advisor.Mode(), "ok")
	}
	if p.write(rec, "advice", func(ctx context.Context) error {
		return p.writer.SetAdvice(ctx, rec.ID, rec.Revision, advice)
	}) {
		slog.Info("advice stored", "record_id", rec.ID, "failed", err != nil)
	}
}

func (p *Pipeline) classify(c Classifier, rec transcript.Record) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.settings.Timeout)
	defer cancel()
	result, err := c.Classify(ctx, rec.Text)
	if err != nil {
		return 0, &ClassificationError{RecordID: rec.ID, Err: err}
	}
	score, err := Score(result.Probability)
	if err != nil {
		return 0, &ClassificationError{RecordID: rec.ID, Err: err}
	}
	return score, nil
}

func (p *Pipeline) advise(a Advisor, rec transcript.Record) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.settings.Timeout)
	defer cancel()
	advice, err := a.Advise(ctx, rec.Text)
	if err != nil {
		return "", &AdvisoryError{RecordID: rec.ID, Err: err}
	}
	return StripThink(advice), nil
}

// write applies one result and reports whether the evaluation should
// continue.
func (p *Pipeline) write(rec transcript.Record, field string, apply func(ctx context.Context) error) bool {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	err := apply(ctx)
	switch {
	case err == nil:
		return true
	case errors.Is(err, transcript.ErrNotFound), errors.Is(err, transcript.ErrStaleRevision):
		slog.Debug("dropping risk result for changed transcript", "record_id", rec.ID, "field", field, "reason", err)
	default:
		slog.Error("failed to store risk result", "error", err, "record_id", rec.ID, "field", field)
	}
	return false
}
