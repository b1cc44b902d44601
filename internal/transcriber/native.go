package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/foxseedlab/scamwatch/internal/config"
)

const (
	utteranceRestartDelay = 300 * time.Millisecond
	busyRestartDelay      = 500 * time.Millisecond
	restartStreakWarnStep = 50
)

type EngineListener interface {
	OnReadyForSpeech()
	OnPartial(text string)
	OnLevel(db float64)
}

// Engine recognizes one utterance per call, the way platform recognizers
// do. A transient *EngineError means nothing was heard.
type Engine interface {
	Recognize(ctx context.Context, language string, l EngineListener) (string, error)
}

// NativeBackend keeps a one-shot Engine listening continuously by starting
// it again after every utterance, timeout or no-match.
type NativeBackend struct {
	engine         Engine
	utteranceDelay time.Duration
	busyDelay      time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	level atomic.Uint64
}

func NewNativeBackend(engine Engine) *NativeBackend {
	return &NativeBackend{
		engine:         engine,
		utteranceDelay: utteranceRestartDelay,
		busyDelay:      busyRestartDelay,
	}
}

func (b *NativeBackend) Name() string { return config.ASRProviderNative }

func (b *NativeBackend) Start(ctx context.Context, opts StartOptions, r Receiver) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	b.cancel = cancel
	b.done = done
	go func() {
		defer close(done)
		b.run(runCtx, opts.Language, r)
	}()
	return nil
}

func (b *NativeBackend) Stop() error {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	b.setLevel(0)
	return nil
}

func (b *NativeBackend) Loudness() float64 {
	return math.Float64frombits(b.level.Load())
}

func (b *NativeBackend) setLevel(v float64) {
	b.level.Store(math.Float64bits(v))
}

func (b *NativeBackend) run(ctx context.Context, language string, r Receiver) {
	listener := &engineListener{backend: b, receiver: r}
	streak := 0
	for {
		text, err := b.engine.Recognize(ctx, language, listener)
		if ctx.Err() != nil {
			return
		}

		delay := time.Duration(0)
		var engineErr *EngineError
		switch {
		case err == nil:
			streak = 0
			if strings.TrimSpace(text) != "" {
				r.OnFinal(text)
			}
			delay = b.utteranceDelay
		case errors.As(err, &engineErr) && engineErr.Transient():
			streak++
			if streak%restartStreakWarnStep == 0 {
				slog.Warn("native engine keeps restarting without speech", "consecutive_restarts", streak, "code", engineErr.Code.String())
			}
		case errors.As(err, &engineErr) && engineErr.Code == EngineBusy:
			slog.Warn("native engine busy; restarting after delay", "delay", b.busyDelay)
			delay = b.busyDelay
		default:
			slog.Error("native engine failed", "error", err)
			b.setLevel(0)
			r.OnClosed(err)
			return
		}

		r.OnRestarting()
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}
}

type engineListener struct {
	backend  *NativeBackend
	receiver Receiver
}

func (l *engineListener) OnReadyForSpeech() {
	l.receiver.OnReady()
}

func (l *engineListener) OnPartial(text string) {
	l.receiver.OnPartial(text)
}

func (l *engineListener) OnLevel(db float64) {
	level := audio.LevelFromDecibels(db, audio.DecibelFloor, audio.DecibelCeiling)
	l.backend.setLevel(level)
	l.receiver.OnLoudness(level)
}
