package telemetry

import (
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Exporter, error) {
		c := do.MustInvoke[*config.Config](i)
		return Setup(c.Env, c.MetricsAddr)
	})
}
