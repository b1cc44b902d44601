package risk

import (
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/risk"
	"github.com/foxseedlab/scamwatch/internal/telemetry"
	"github.com/foxseedlab/scamwatch/internal/transcript"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*risk.Pipeline, error) {
		c := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[*transcript.Store](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)
		p := risk.NewPipeline(store, NewClients(c.Providers, c.NetworkTimeout()), risk.Settings{
			Threshold: c.RiskThreshold,
			MinChars:  c.RiskMinChars,
			Timeout:   c.NetworkTimeout(),
		}, metrics)
		store.OnChange(p.HandleEvent)
		return p, nil
	})
}
