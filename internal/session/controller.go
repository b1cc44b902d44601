package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/signal"
	"github.com/foxseedlab/scamwatch/internal/telemetry"
	"github.com/foxseedlab/scamwatch/internal/transcriber"
	"github.com/foxseedlab/scamwatch/internal/transcript"
)

const insertTimeout = 15 * time.Second

// TranscriptSink stores final transcripts.
type TranscriptSink interface {
	Insert(ctx context.Context, text string) (transcript.Record, error)
}

// Controller owns the single recording session. Start, Stop and language
// changes are serialized; backend events are applied under a separate lock
// and dropped once the backend that produced them has been replaced.
type Controller struct {
	selector transcriber.Selector
	sink     TranscriptSink
	metrics  *telemetry.Metrics

	lifecycle sync.Mutex

	mu         sync.Mutex
	asr        config.ASRProvider
	language   string
	backend    transcriber.Backend
	generation uint64
	observer   func(State)

	state    *signal.Value[State]
	partial  *signal.Value[string]
	loudness *signal.Value[float64]
	lastErr  *signal.Value[string]
}

type Option func(*Controller)

func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithStateObserver registers fn to see every state transition in order.
// It runs with the controller lock held and must not call back into it.
func WithStateObserver(fn func(State)) Option {
	return func(c *Controller) { c.observer = fn }
}

func NewController(selector transcriber.Selector, sink TranscriptSink, asr config.ASRProvider, language string, opts ...Option) *Controller {
	c := &Controller{
		selector: selector,
		sink:     sink,
		asr:      asr,
		language: language,
		state:    signal.New(State{Phase: PhaseIdle}),
		partial:  signal.New(""),
		loudness: signal.New(0.0),
		lastErr:  signal.New(""),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a session with the current provider and language. It is a
// no-op while a session is already active. Readiness and later failures
// are reported through the state signal; an error is returned only when
// the backend could not be started at all.
func (c *Controller) Start() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.state.Get().Active() {
		c.mu.Unlock()
		return nil
	}
	stale := c.backend
	c.backend = nil
	c.generation++
	c.mu.Unlock()
	if stale != nil {
		_ = stale.Stop()
	}

	c.mu.Lock()
	asr, language := c.asr, c.language
	c.lastErr.Set("")
	c.setStateLocked(State{Phase: PhaseStarting})
	c.mu.Unlock()

	backend, err := c.selector.Backend(asr)
	if err != nil {
		c.failStart(err)
		return err
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.backend = backend
	c.mu.Unlock()

	slog.Info("starting recognition session", "backend", backend.Name(), "language", language)
	if err := backend.Start(context.Background(), transcriber.StartOptions{Language: language}, &receiver{c: c, gen: gen}); err != nil {
		c.mu.Lock()
		if c.generation == gen {
			c.backend = nil
		}
		c.mu.Unlock()
		c.failStart(err)
		return err
	}
	c.metrics.SessionStarted(backend.Name())
	return nil
}

// failStart reports a start attempt that acquired nothing. The reason is
// kept as the last error while the session returns to Idle.
func (c *Controller) failStart(err error) {
	reason := transcriber.Reason(err)
	slog.Error("recognition session failed to start", "error", err, "reason", reason)
	c.metrics.SessionFailed(reason)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr.Set(reason)
	c.setStateLocked(State{Phase: PhaseFailed, Reason: reason})
	c.setStateLocked(State{Phase: PhaseIdle})
}

// Stop releases the active backend and resets the live signals. Calling it
// when nothing is running is harmless.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	backend := c.backend
	if backend == nil && c.state.Get().Phase == PhaseIdle {
		c.mu.Unlock()
		return nil
	}
	c.backend = nil
	c.generation++
	c.setStateLocked(State{Phase: PhaseStopping})
	c.mu.Unlock()

	var err error
	if backend != nil {
		slog.Info("stopping recognition session", "backend", backend.Name())
		err = backend.Stop()
	}

	c.mu.Lock()
	c.partial.Set("")
	c.loudness.Set(0)
	c.setStateLocked(State{Phase: PhaseIdle})
	c.mu.Unlock()
	return err
}

// ToggleLanguage flips between the two supported languages, restarting the
// session when one was active.
func (c *Controller) ToggleLanguage() (string, error) {
	c.mu.Lock()
	next := config.ToggleLanguage(c.language)
	c.mu.Unlock()
	return next, c.SetLanguage(next)
}

func (c *Controller) SetLanguage(language string) error {
	active := c.State().Active()
	if active {
		if err := c.Stop(); err != nil {
			slog.Warn("stop before language change failed", "error", err)
		}
	}
	c.mu.Lock()
	c.language = language
	c.mu.Unlock()
	slog.Info("recognition language changed", "language", language, "restart", active)
	if active {
		return c.Start()
	}
	return nil
}

// SetProvider changes the recognition backend used by the next Start.
func (c *Controller) SetProvider(asr config.ASRProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.asr = asr
}

func (c *Controller) Language() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

func (c *Controller) State() State      { return c.state.Get() }
func (c *Controller) Partial() string   { return c.partial.Get() }
func (c *Controller) Loudness() float64 { return c.loudness.Get() }
func (c *Controller) LastError() string { return c.lastErr.Get() }

func (c *Controller) SubscribeState() (<-chan State, func())      { return c.state.Subscribe() }
func (c *Controller) SubscribePartial() (<-chan string, func())   { return c.partial.Subscribe() }
func (c *Controller) SubscribeLoudness() (<-chan float64, func()) { return c.loudness.Subscribe() }

func (c *Controller) setStateLocked(s State) {
	c.state.Set(s)
	if c.observer != nil {
		c.observer(s)
	}
}

// current runs fn under the lock when gen still names the active backend.
func (c *Controller) current(gen uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	fn()
	return true
}

// release stops a backend that ended on its own.
func (c *Controller) release(gen uint64) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.mu.Lock()
	if gen != c.generation || c.backend == nil {
		c.mu.Unlock()
		return
	}
	backend := c.backend
	c.backend = nil
	c.mu.Unlock()
	_ = backend.Stop()
}

type receiver struct {
	c   *Controller
	gen uint64
}

func (r *receiver) OnReady() {
	r.c.current(r.gen, func() {
		switch r.c.state.Get().Phase {
		case PhaseStarting, PhaseRestarting:
			r.c.setStateLocked(State{Phase: PhaseListening})
		}
	})
}

func (r *receiver) OnRestarting() {
	r.c.current(r.gen, func() {
		if r.c.state.Get().Phase == PhaseListening {
			r.c.setStateLocked(State{Phase: PhaseRestarting})
			r.c.metrics.SessionRestarted()
		}
	})
}

func (r *receiver) OnPartial(text string) {
	r.c.current(r.gen, func() { r.c.partial.Set(text) })
}

func (r *receiver) OnLoudness(level float64) {
	r.c.current(r.gen, func() { r.c.loudness.Set(level) })
}

func (r *receiver) OnFinal(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if !r.c.current(r.gen, func() { r.c.partial.Set("") }) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()
	rec, err := r.c.sink.Insert(ctx, text)
	if err != nil {
		slog.Error("failed to store final transcript", "error", err)
		return
	}
	r.c.metrics.FinalTranscript()
	slog.Info("final transcript stored", "record_id", rec.ID, "chars", len([]rune(text)))
}

func (r *receiver) OnClosed(err error) {
	applied := r.c.current(r.gen, func() {
		r.c.partial.Set("")
		r.c.loudness.Set(0)
		if err == nil {
			slog.Info("recognition backend closed by remote")
			r.c.setStateLocked(State{Phase: PhaseIdle})
			return
		}
		reason := transcriber.Reason(err)
		slog.Error("recognition session failed", "error", err, "reason", reason)
		r.c.lastErr.Set(reason)
		r.c.setStateLocked(State{Phase: PhaseFailed, Reason: reason})
		r.c.metrics.SessionFailed(reason)
	})
	if applied {
		go r.c.release(r.gen)
	}
}
