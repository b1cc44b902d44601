package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	alertimpl "github.com/foxseedlab/scamwatch/external/alert"
	audioimpl "github.com/foxseedlab/scamwatch/external/audio"
	"github.com/foxseedlab/scamwatch/external/bus"
	configloader "github.com/foxseedlab/scamwatch/external/config"
	"github.com/foxseedlab/scamwatch/external/discord"
	repositoryimpl "github.com/foxseedlab/scamwatch/external/repository"
	riskimpl "github.com/foxseedlab/scamwatch/external/risk"
	telemetryimpl "github.com/foxseedlab/scamwatch/external/telemetry"
	transcriberimpl "github.com/foxseedlab/scamwatch/external/transcriber"
	webhookimpl "github.com/foxseedlab/scamwatch/external/webhook"
	"github.com/foxseedlab/scamwatch/internal/alert"
	"github.com/foxseedlab/scamwatch/internal/cli"
	"github.com/foxseedlab/scamwatch/internal/config"
	"github.com/foxseedlab/scamwatch/internal/output"
	"github.com/foxseedlab/scamwatch/internal/repository"
	"github.com/foxseedlab/scamwatch/internal/risk"
	"github.com/foxseedlab/scamwatch/internal/session"
	"github.com/foxseedlab/scamwatch/internal/telemetry"
	"github.com/foxseedlab/scamwatch/internal/transcript"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Debug("startup: configuration loaded", "env", cfg.Env, "store", cfg.StoreDriver, "asr", cfg.Providers.ASR.ID)

	injector := setupDI(cfg)
	os.Exit(run(cfg, injector))
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Logs go to stderr so command output on stdout stays readable.
func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	telemetryimpl.RegisterDI(injector)
	telemetry.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	transcript.RegisterDI(injector)
	audioimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	riskimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	discord.RegisterDI(injector)
	bus.RegisterDI(injector)
	alertimpl.RegisterDI(injector)

	return injector
}

func run(cfg *config.Config, injector do.Injector) int {
	formatter := output.NewFormatter(os.Stderr)
	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	exporter, err := do.Invoke[*telemetryimpl.Exporter](injector)
	if err != nil {
		slog.Error("failed to start metrics exporter", "error", err)
		return 1
	}
	closers = append(closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := exporter.Shutdown(ctx); err != nil {
			slog.Warn("failed to shut down metrics exporter", "error", err)
		}
	})

	store, err := do.Invoke[*transcript.Store](injector)
	if err != nil {
		formatter.Error(err.Error())
		return 1
	}
	if cfg.StoreDriver != config.StoreDriverMemory {
		repo := do.MustInvoke[repository.Repository](injector)
		closers = append(closers, repo.Close)
	}
	pipeline, err := do.Invoke[*risk.Pipeline](injector)
	if err != nil {
		formatter.Error(err.Error())
		return 1
	}
	trigger, err := do.Invoke[*alert.Trigger](injector)
	if err != nil {
		formatter.Error(err.Error())
		return 1
	}
	nc := do.MustInvoke[*bus.NATSNotifier](injector)
	closers = append(closers, nc.Close)

	deps := &cli.Dependencies{
		Config:   cfg,
		Store:    store,
		Pipeline: pipeline,
		Trigger:  trigger,
		Session: func() (*session.Controller, error) {
			ctrl, err := do.Invoke[*session.Controller](injector)
			if err != nil {
				return nil, err
			}
			sel := do.MustInvoke[*transcriberimpl.BackendSelector](injector)
			closers = append(closers, func() {
				if err := sel.Close(); err != nil {
					slog.Warn("failed to close recognition clients", "error", err)
				}
			})
			return ctrl, nil
		},
		UseAdvisor: func(name string) error {
			return riskimpl.UseAdvisoryPreset(pipeline, cfg, name)
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			slog.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := cli.NewRootCmd(deps).ExecuteContext(ctx); err != nil {
		formatter.Error(err.Error())
		return 1
	}
	return 0
}
