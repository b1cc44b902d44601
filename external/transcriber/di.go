package transcriber

import (
	"net/http"

	"github.com/foxseedlab/scamwatch/internal/audio"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*BackendSelector, error) {
		c := do.MustInvoke[*config.Config](i)
		sources := do.MustInvoke[audio.SourceFactory](i)
		return NewBackendSelector(c, sources, &http.Client{Timeout: c.NetworkTimeout()}), nil
	})
	do.Provide(injector, func(i do.Injector) (transcriber.Selector, error) {
		return do.MustInvoke[*BackendSelector](i), nil
	})
}
