package session

import (
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/telemetry"
	"github.com/foxseedlab/scamwatch/internal/transcriber"
	"github.com/foxseedlab/scamwatch/internal/transcript"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Controller, error) {
		cfg := do.MustInvoke[*config.Config](i)
		selector := do.MustInvoke[transcriber.Selector](i)
		store := do.MustInvoke[*transcript.Store](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		return NewController(selector, store, cfg.Providers.ASR, cfg.DefaultLanguage, WithMetrics(metrics)), nil
	})
}
