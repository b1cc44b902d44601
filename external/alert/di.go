// Package alert assembles the alert trigger from every configured
// notifier.
package alert

import (
	"log/slog"

	"github.com/foxseedlab/scamwatch/external/bus"
	"github.com/foxseedlab/scamwatch/external/discord"
	"github.com/foxseedlab/scamwatch/external/webhook"
	"github.com/foxseedlab/scamwatch/internal/alert"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/telemetry"
	"github.com/foxseedlab/scamwatch/internal/transcript"
	"github.com/samber/do/v2"
)

type optionalNotifier interface {
	alert.Notifier
	Enabled() bool
}

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*alert.Trigger, error) {
		c := do.MustInvoke[*config.Config](i)
		store := do.MustInvoke[*transcript.Store](i)
		metrics := do.MustInvoke[*telemetry.Metrics](i)

		candidates := []optionalNotifier{do.MustInvoke[*webhook.HTTPNotifier](i)}
		dc, err := do.Invoke[*discord.Notifier](i)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, dc)
		nc, err := do.Invoke[*bus.NATSNotifier](i)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, nc)

		t := alert.NewTrigger(c.AlertThreshold, enabled(candidates), metrics)
		t.Prime(store.Snapshot())
		store.OnChange(func(transcript.Event) {
			t.Refresh(store)
		})
		return t, nil
	})
}

func enabled(candidates []optionalNotifier) []alert.Notifier {
	var out []alert.Notifier
	for _, n := range candidates {
		if !n.Enabled() {
			continue
		}
		out = append(out, n)
	}
	names := make([]string, 0, len(out))
	for _, n := range out {
		names = append(names, n.Name())
	}
	slog.Info("alert notifiers configured", "notifiers", names)
	return out
}
