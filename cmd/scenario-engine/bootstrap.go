package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cityresilience/scenario-engine/internal/config"
	"github.com/cityresilience/scenario-engine/internal/metrics"
	"github.com/cityresilience/scenario-engine/internal/narrative"
	"github.com/cityresilience/scenario-engine/internal/notify"
	"github.com/cityresilience/scenario-engine/internal/retry"
	"github.com/cityresilience/scenario-engine/pkg/engine"
	"github.com/cityresilience/scenario-engine/pkg/runner"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
	"github.com/cityresilience/scenario-engine/pkg/store"
	"github.com/cityresilience/scenario-engine/pkg/store/inmem"
	"github.com/cityresilience/scenario-engine/pkg/store/postgres"
)

// loadConfig reads the config at path, or falls back to library defaults
// when path is empty (debug subcommands run without a config file).
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := &config.Config{}
		cfg.Defaults()
		return cfg, nil
	}
	return config.Load(path)
}

// openStore builds the configured Store backend, running migrations for
// postgres.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func() error, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := postgres.Migrate(pg.DB()); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate postgres schema: %w", err)
		}
		return pg, pg.Close, nil
	default:
		s := inmem.New(nil)
		return s, func() error { return nil }, nil
	}
}

// buildFacade wires the runner, notifier, metrics, and optional narrator
// behind one engine.Facade, following the same collaborator-construction
// order the HTTP edge and debug commands both need.
func buildFacade(cfg *config.Config, s store.Store, logger *slog.Logger) *engine.Facade {
	m := metrics.New(prometheus.NewRegistry())

	var runnerOpts []runner.Option
	runnerOpts = append(runnerOpts, runner.WithLogger(logger), runner.WithMetrics(m))

	if cfg.Notify.SlackToken != "" {
		slackNotifier := notify.NewSlackNotifier(cfg.Notify.SlackToken, cfg.Notify.SlackChannel, logger)
		alerter := notify.SectorAlerter{Notifier: notify.Multi{Notifiers: []notify.Notifier{
			notify.NewLogNotifier(logger), slackNotifier,
		}}}
		runnerOpts = append(runnerOpts, runner.WithSectorAlerter(alerter))
	} else {
		alerter := notify.SectorAlerter{Notifier: notify.NewLogNotifier(logger)}
		runnerOpts = append(runnerOpts, runner.WithSectorAlerter(alerter))
	}

	if cfg.LLM.Enabled {
		runnerOpts = append(runnerOpts, runner.WithNarrator(narrative.NewAnthropicNarrator(cfg.LLM.AnthropicAPIKey, logger)))
	}

	r := runner.New(s, runnerOpts...)

	facadeOpts := []engine.Option{engine.WithLogger(logger), engine.WithMetrics(m)}
	if cfg.Store.Driver == "postgres" {
		// The postgres store talks to the database over the network, so
		// store calls get the network-tuned backoff. The predicate retries
		// timeouts and temporary errors; IsTemporary also counts any error
		// that does not report Temporary() as retryable.
		retryCfg := retry.NetworkConfig()
		retryCfg.RetryableFunc = retry.Combine(retry.IsTemporary, retry.IsTimeout)
		facadeOpts = append(facadeOpts, engine.WithRetryConfig(retryCfg))
	}

	return engine.New(s, r, facadeOpts...)
}

// maybeStartAutoload starts the template directory watcher when the config
// enables autoload, returning a no-op closer when it does not.
func maybeStartAutoload(cfg *config.Config, s store.Store, logger *slog.Logger) (func() error, error) {
	if !cfg.Templates.Autoload || cfg.Templates.Dir == "" {
		return func() error { return nil }, nil
	}
	w, err := scenario.NewWatcher(cfg.Templates.Dir, s, logger)
	if err != nil {
		return nil, fmt.Errorf("start template autoload watcher: %w", err)
	}
	return w.Close, nil
}
