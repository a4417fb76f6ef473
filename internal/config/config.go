package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ogulcanaydogan/genroute/pkg/providers"
)

// Config holds all genroute configuration.
type Config struct {
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Budget     BudgetConfig     `mapstructure:"budget"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Generation GenerationConfig `mapstructure:"generation"`
	Pricing    PricingConfig    `mapstructure:"pricing"`
	Server     ServerConfig     `mapstructure:"server"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// BudgetConfig defines default daily limits and enforcement behavior.
type BudgetConfig struct {
	DefaultDailyTokens int64   `mapstructure:"default_daily_tokens"`
	DefaultDailyCost   float64 `mapstructure:"default_daily_cost"`
	SoftMultiplier     float64 `mapstructure:"soft_multiplier"`
	StrictAccounting   bool    `mapstructure:"strict_accounting"`
	AlertThresholdPct  float64 `mapstructure:"alert_threshold_pct"`
}

// Cache backends.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// CacheConfig defines the response cache backend.
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"`
	Namespace  string        `mapstructure:"namespace"`
	TTL        time.Duration `mapstructure:"ttl"`
	SQLitePath string        `mapstructure:"sqlite_path"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings.
type RedisConfig struct {
	Addrs    []string `mapstructure:"addrs"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	DB       int      `mapstructure:"db"`
}

// ProvidersConfig selects the hosted and open providers and holds backend
// connection settings.
type ProvidersConfig struct {
	Primary   string         `mapstructure:"primary"`
	Open      string         `mapstructure:"open"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Ollama    ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig defines one backend's connection settings.
type ProviderConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RPS       float64       `mapstructure:"rps"`
	Burst     int           `mapstructure:"burst"`
	MaxTokens int           `mapstructure:"max_tokens"`
}

// Client converts to the providers package form.
func (p ProviderConfig) Client() providers.ClientConfig {
	return providers.ClientConfig{
		APIKey:    p.APIKey,
		BaseURL:   p.BaseURL,
		Timeout:   p.Timeout,
		RPS:       p.RPS,
		Burst:     p.Burst,
		MaxTokens: p.MaxTokens,
	}
}

// GenerationConfig defines orchestrator settings.
type GenerationConfig struct {
	SlowThreshold time.Duration `mapstructure:"slow_threshold"`
}

// PricingConfig defines an optional rate table override file.
type PricingConfig struct {
	File string `mapstructure:"file"`
}

// ServerConfig defines HTTP API settings.
type ServerConfig struct {
	Listen       string        `mapstructure:"listen"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AlertsConfig defines alerting integrations.
type AlertsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("find home directory: %w", err)
	}
	dir := filepath.Join(home, ".genroute")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(dir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	v.SetDefault("storage.path", filepath.Join(dir, "genroute.db"))
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("budget.default_daily_tokens", 100000)
	v.SetDefault("budget.default_daily_cost", 5.0)
	v.SetDefault("budget.soft_multiplier", 2.0)
	v.SetDefault("budget.strict_accounting", false)
	v.SetDefault("budget.alert_threshold_pct", 80)
	v.SetDefault("cache.backend", CacheSQLite)
	v.SetDefault("cache.namespace", "genai")
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.sqlite_path", filepath.Join(dir, "cache.db"))
	v.SetDefault("cache.redis.addrs", []string{"localhost:6379"})
	v.SetDefault("providers.primary", "openai:gpt-4o-mini")
	v.SetDefault("providers.open", "ollama:llama3.1")
	for name, p := range map[string]ProviderConfig{
		"openai":    {Timeout: 30 * time.Second},
		"anthropic": {BaseURL: "https://api.anthropic.com", Timeout: 30 * time.Second},
		"ollama":    {BaseURL: "http://127.0.0.1:11434", Timeout: 120 * time.Second},
	} {
		prefix := "providers." + name + "."
		v.SetDefault(prefix+"api_key", p.APIKey)
		v.SetDefault(prefix+"base_url", p.BaseURL)
		v.SetDefault(prefix+"timeout", p.Timeout)
		v.SetDefault(prefix+"rps", p.RPS)
		v.SetDefault(prefix+"burst", p.Burst)
		v.SetDefault(prefix+"max_tokens", p.MaxTokens)
	}
	v.SetDefault("generation.slow_threshold", "10s")
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", "#ai-budget")
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("pricing.file", "")

	// Environment variables. Unmarshal only sees keys with a default above, so
	// every configurable key needs one.
	v.SetEnvPrefix("GENROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path, home)
	cfg.Cache.SQLitePath = expandHome(cfg.Cache.SQLitePath, home)
	cfg.Pricing.File = expandHome(cfg.Pricing.File, home)

	return &cfg, nil
}

// Validate checks values that would otherwise fail later at request time.
func (c *Config) Validate() error {
	var errs []error

	if c.Budget.DefaultDailyTokens <= 0 {
		errs = append(errs, errors.New("budget.default_daily_tokens must be positive"))
	}
	if c.Budget.DefaultDailyCost <= 0 {
		errs = append(errs, errors.New("budget.default_daily_cost must be positive"))
	}
	if c.Budget.SoftMultiplier <= 1.0 {
		errs = append(errs, fmt.Errorf("budget.soft_multiplier must be greater than 1.0, got %g", c.Budget.SoftMultiplier))
	}
	if c.Budget.AlertThresholdPct < 0 || c.Budget.AlertThresholdPct > 100 {
		errs = append(errs, fmt.Errorf("budget.alert_threshold_pct must be within 0-100, got %g", c.Budget.AlertThresholdPct))
	}

	switch c.Cache.Backend {
	case CacheSQLite, CacheNone:
	case CacheRedis:
		if len(c.Cache.Redis.Addrs) == 0 {
			errs = append(errs, errors.New("cache.redis.addrs is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q: want sqlite, redis or none", c.Cache.Backend))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}

	if _, err := providers.ParseID(c.Providers.Primary); err != nil {
		errs = append(errs, fmt.Errorf("providers.primary: %w", err))
	}
	if _, err := providers.ParseID(c.Providers.Open); err != nil {
		errs = append(errs, fmt.Errorf("providers.open: %w", err))
	}

	if c.Alerts.Slack.Enabled && c.Alerts.Slack.WebhookURL == "" {
		errs = append(errs, errors.New("alerts.slack.webhook_url is required when slack is enabled"))
	}
	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		errs = append(errs, errors.New("alerts.webhook.url is required when the webhook is enabled"))
	}

	return errors.Join(errs...)
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
