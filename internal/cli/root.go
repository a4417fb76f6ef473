package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/genroute/internal/config"
	"github.com/ogulcanaydogan/genroute/pkg/alerts"
	"github.com/ogulcanaydogan/genroute/pkg/cache"
	rediscache "github.com/ogulcanaydogan/genroute/pkg/cache/redis"
	sqlitecache "github.com/ogulcanaydogan/genroute/pkg/cache/sqlite"
	"github.com/ogulcanaydogan/genroute/pkg/estimator"
	"github.com/ogulcanaydogan/genroute/pkg/ledger"
	"github.com/ogulcanaydogan/genroute/pkg/orchestrator"
	"github.com/ogulcanaydogan/genroute/pkg/policy"
	"github.com/ogulcanaydogan/genroute/pkg/providers"
	"github.com/ogulcanaydogan/genroute/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "genroute",
	Short: "genroute - budget-aware AI generation routing",
	Long: `genroute routes AI generation requests between a hosted provider and a
self-hosted open model based on per-organization daily budgets. It caches
responses, records usage, and alerts when organizations approach their limits.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.genroute/config.yaml)")
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initStorage creates a storage backend from config.
func initStorage(cfg *config.Config) (*storage.SQLite, error) {
	return storage.NewSQLite(cfg.Storage.Path)
}

// initNotifiers creates alert notifiers from config.
func initNotifiers(cfg *config.Config) []alerts.Notifier {
	var notifiers []alerts.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alerts.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alerts.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}

// initEstimator loads the rate table, applying the pricing file if set.
func initEstimator(cfg *config.Config) (*estimator.Estimator, error) {
	if cfg.Pricing.File == "" {
		return estimator.New(nil), nil
	}
	rates, err := estimator.LoadRates(cfg.Pricing.File)
	if err != nil {
		return nil, err
	}
	return estimator.New(rates), nil
}

// initCache opens the configured cache backend. The returned ResponseCache
// is nil for the "none" backend.
func initCache(cfg *config.Config, logger *slog.Logger) (*cache.ResponseCache, func(), error) {
	var (
		store   cache.Store
		closeFn = func() {}
	)
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return nil, closeFn, nil
	case config.CacheRedis:
		s, err := rediscache.NewStore(rediscache.Config{
			Addrs:    cfg.Cache.Redis.Addrs,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis cache: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := s.Ping(ctx); err != nil {
			logger.Warn("redis cache unreachable, lookups will miss", "addrs", cfg.Cache.Redis.Addrs, "error", err)
		}
		cancel()
		store, closeFn = s, s.Close
	default:
		s, err := sqlitecache.New(cfg.Cache.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite cache: %w", err)
		}
		store, closeFn = s, func() { _ = s.Close() }
	}
	return cache.New(store, cfg.Cache.Namespace, cfg.Cache.TTL, logger), closeFn, nil
}

// app is a fully wired routing core.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *storage.SQLite
	ledger *ledger.Ledger
	orch   *orchestrator.Orchestrator

	closeCache func()
}

// initApp wires storage, ledger, cache, providers and the orchestrator.
func initApp(cfg *config.Config) (*app, error) {
	logger := newLogger(cfg)

	store, err := initStorage(cfg)
	if err != nil {
		return nil, err
	}

	est, err := initEstimator(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	rc, closeCache, err := initCache(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	l := ledger.New(store, ledgerConfig(cfg), initNotifiers(cfg), logger)

	registry := providers.NewRegistryWithSettings(providers.Settings{
		OpenAI:    cfg.Providers.OpenAI.Client(),
		Anthropic: cfg.Providers.Anthropic.Client(),
		Ollama:    cfg.Providers.Ollama.Client(),
	})

	orch := orchestrator.New(orchestrator.Deps{
		Providers: registry,
		Estimator: est,
		Cache:     rc,
		Policy:    policy.NewSelector(l, cfg.Budget.SoftMultiplier, logger),
		Ledger:    l,
		UsageLog:  store,
	}, orchestrator.Config{
		// Validate has already checked both ids.
		Primary:       providers.MustParseID(cfg.Providers.Primary),
		Open:          providers.MustParseID(cfg.Providers.Open),
		SlowThreshold: cfg.Generation.SlowThreshold,
	}, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		ledger:     l,
		orch:       orch,
		closeCache: closeCache,
	}, nil
}

func (a *app) Close() {
	a.closeCache()
	a.store.Close()
}

func ledgerConfig(cfg *config.Config) ledger.Config {
	return ledger.Config{
		DefaultDailyTokens: cfg.Budget.DefaultDailyTokens,
		DefaultDailyCost:   cfg.Budget.DefaultDailyCost,
		StrictAccounting:   cfg.Budget.StrictAccounting,
		AlertThresholdPct:  cfg.Budget.AlertThresholdPct,
	}
}

// initLedger opens storage and a ledger without providers or cache.
func initLedger(cfg *config.Config) (*ledger.Ledger, *storage.SQLite, error) {
	store, err := initStorage(cfg)
	if err != nil {
		return nil, nil, err
	}
	l := ledger.New(store, ledgerConfig(cfg), initNotifiers(cfg), newLogger(cfg))
	return l, store, nil
}
