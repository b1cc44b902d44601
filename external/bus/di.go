package bus

import (
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*NATSNotifier, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewNATSNotifier(c.AlertNATSURL, c.AlertNATSSubject, c.NetworkTimeout())
	})
}
