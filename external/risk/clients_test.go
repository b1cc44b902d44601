package risk

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/risk"
	"github.com/foxseedlab/scamwatch/internal/transcript"
)

func newRiskServer(t *testing.T, advice string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/predict"):
			_, _ = w.Write([]byte(`{"text_received":"x","scam_probability":0.9,"is_risk":true}`))
		case strings.HasSuffix(r.URL.Path, "/chat/completions"):
			_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"` + advice + `"}}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestUseAdvisoryPreset_SwitchesAdvisor(t *testing.T) {
	before := newRiskServer(t, "舊的建議")
	after := newRiskServer(t, "新的建議")

	path := filepath.Join(t.TempDir(), "providers.yaml")
	presets := "advisory:\n" +
		"  - name: first\n    base_url: " + before.URL + "\n    model: m1\n" +
		"  - name: second\n    base_url: " + after.URL + "\n    model: m2\n"
	if err := os.WriteFile(path, []byte(presets), 0o600); err != nil {
		t.Fatalf("write presets: %v", err)
	}
	cfg := &config.Config{
		NetworkTimeoutSec: 5,
		ProvidersFile:     path,
		Providers: config.ProviderConfig{
			ASR:               config.ASRProvider{ID: config.ASRProviderNative},
			ClassifierBaseURL: before.URL,
			Advisory:          config.AdvisoryProvider{Name: "first", BaseURL: before.URL, UseAuthHeader: true},
		},
	}

	store := transcript.NewStore()
	p := risk.NewPipeline(store, NewClients(cfg.Providers, cfg.NetworkTimeout()), risk.Settings{
		Threshold: risk.DefaultThreshold,
		MinChars:  risk.DefaultMinChars,
	}, nil)
	store.OnChange(p.HandleEvent)

	if err := UseAdvisoryPreset(p, cfg, "second"); err != nil {
		t.Fatalf("switch preset: %v", err)
	}
	rec, err := store.Insert(context.Background(), "附上銀行帳號立即轉帳")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	p.Wait()

	got, _ := store.Get(rec.ID)
	if got.Advice == nil || *got.Advice != "新的建議" {
		t.Fatalf("expected advice from the selected preset, got %+v", got.Advice)
	}
}

func TestUseAdvisoryPreset_Errors(t *testing.T) {
	p := risk.NewPipeline(transcript.NewStore(), risk.Clients{}, risk.Settings{}, nil)
	if err := UseAdvisoryPreset(p, &config.Config{}, "any"); !errors.Is(err, ErrNoProvidersFile) {
		t.Fatalf("expected ErrNoProvidersFile, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("advisory:\n  - name: only\n    base_url: http://localhost\n"), 0o600); err != nil {
		t.Fatalf("write presets: %v", err)
	}
	cfg := &config.Config{ProvidersFile: path, Providers: config.ProviderConfig{ASR: config.ASRProvider{ID: config.ASRProviderNative}}}
	if err := UseAdvisoryPreset(p, cfg, "missing"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
