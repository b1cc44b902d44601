package transcriber

import (
	"context"

	"github.com/foxseedlab/scamwatch/internal/config"
)

type StartOptions struct {
	Language string
}

// Receiver gets backend events. Calls may arrive from any goroutine but
// never from inside Start.
type Receiver interface {
	OnReady()
	OnRestarting()
	OnPartial(text string)
	OnFinal(text string)
	OnLoudness(level float64)
	// OnClosed reports that the backend ended on its own. A nil error is a
	// normal remote close.
	OnClosed(err error)
}

// Backend is one speech recognition strategy. Start returns quickly; an
// error from Start means nothing was acquired.
type Backend interface {
	Name() string
	Start(ctx context.Context, opts StartOptions, r Receiver) error
	Stop() error
	Loudness() float64
}

type Selector interface {
	Backend(provider config.ASRProvider) (Backend, error)
}
