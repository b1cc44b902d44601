package alert

import (
	"context"
	"testing"

	"github.com/foxseedlab/scamwatch/external/bus"
	"github.com/foxseedlab/scamwatch/external/discord"
	"github.com/foxseedlab/scamwatch/external/webhook"
	"github.com/foxseedlab/scamwatch/internal/alert"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/telemetry"
	"github.com/foxseedlab/scamwatch/internal/transcript"
	"github.com/samber/do/v2"
)

type stubNotifier struct {
	name string
	on   bool
}

func (s stubNotifier) Name() string                              { return s.name }
func (s stubNotifier) Enabled() bool                             { return s.on }
func (s stubNotifier) Notify(context.Context, alert.Alert) error { return nil }

func TestEnabled_FiltersDisabledNotifiers(t *testing.T) {
	got := enabled([]optionalNotifier{
		stubNotifier{name: "webhook", on: false},
		stubNotifier{name: "discord", on: true},
		stubNotifier{name: "nats", on: true},
	})
	if len(got) != 2 || got[0].Name() != "discord" || got[1].Name() != "nats" {
		t.Fatalf("unexpected notifiers: %+v", got)
	}
}

func newTestInjector(store *transcript.Store) do.Injector {
	injector := do.New()
	do.ProvideValue(injector, &config.Config{
		StoreDriver:       config.StoreDriverMemory,
		NetworkTimeoutSec: 5,
		AlertThreshold:    alert.DefaultThreshold,
	})
	do.ProvideValue(injector, store)
	telemetry.RegisterDI(injector)
	webhook.RegisterDI(injector)
	discord.RegisterDI(injector)
	bus.RegisterDI(injector)
	RegisterDI(injector)
	return injector
}

func TestRegisterDI_HighestIncludesExistingRecords(t *testing.T) {
	ctx := context.Background()
	store := transcript.NewStore()
	rec, err := store.Insert(ctx, "附上銀行帳號立即轉帳")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.SetRisk(ctx, rec.ID, rec.Revision, 82); err != nil {
		t.Fatalf("set risk: %v", err)
	}

	trigger, err := do.Invoke[*alert.Trigger](newTestInjector(store))
	if err != nil {
		t.Fatalf("invoke trigger: %v", err)
	}
	top, ok := trigger.Highest()
	if !ok || top.ID != rec.ID {
		t.Fatalf("expected %s as highest, got %+v ok=%v", rec.ID, top, ok)
	}

	if err := store.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := trigger.Highest(); ok {
		t.Fatal("highest must follow later store changes")
	}
}
