package risk

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	configloader "github.com/foxseedlab/scamwatch/external/config"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/risk"
)

var ErrNoProvidersFile = errors.New("PROVIDERS_FILE is not set")

// NewClients builds both endpoints from the provider settings with a fresh
// HTTP client. Call it again and hand the result to Pipeline.SetClients
// when the settings change.
func NewClients(p config.ProviderConfig, timeout time.Duration) risk.Clients {
	client := &http.Client{Timeout: timeout}
	clients := risk.Clients{Classifier: NewHTTPClassifier(p.ClassifierBaseURL, client)}
	if p.Advisory.RawJSONMode {
		clients.Advisor = NewRawTemplateAdvisor(p.Advisory, client)
	} else {
		clients.Advisor = NewStructuredAdvisor(p.Advisory, client)
	}
	return clients
}

// UseAdvisoryPreset switches p to the named advisory preset from the
// providers file. Evaluations already running keep their old clients.
func UseAdvisoryPreset(p *risk.Pipeline, cfg *config.Config, name string) error {
	if cfg.ProvidersFile == "" {
		return ErrNoProvidersFile
	}
	presets, err := configloader.LoadProviders(cfg.ProvidersFile)
	if err != nil {
		return err
	}
	selected, err := presets.Select(name)
	if err != nil {
		return err
	}
	providers := cfg.Providers
	providers.Advisory = configloader.WithAdvisoryDefaults(selected)
	if err := providers.Validate(); err != nil {
		return err
	}
	p.SetClients(NewClients(providers, cfg.NetworkTimeout()))
	slog.Info("advisory provider switched", "provider", providers.Advisory.Name, "raw_json_mode", providers.Advisory.RawJSONMode)
	return nil
}
