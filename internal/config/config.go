package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"equity-analyst/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Staleness StalenessConfig `mapstructure:"staleness"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Market    MarketConfig    `mapstructure:"market"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	News      NewsConfig      `mapstructure:"news"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
	Client    ClientConfig    `mapstructure:"client"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig covers the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig selects the report store backend.
type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	BadgerPath string `mapstructure:"badger_path"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StalenessConfig tunes when a stored report is recomputed.
type StalenessConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
	// MaxPriceDelta is a fraction: 0.01 means a 1% move invalidates the report.
	MaxPriceDelta float64 `mapstructure:"max_price_delta"`
}

// JobsConfig sizes the background executor.
type JobsConfig struct {
	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	Retention time.Duration `mapstructure:"retention"`
}

// MarketConfig covers ticker normalisation and the price source.
type MarketConfig struct {
	DefaultSuffix  string        `mapstructure:"default_suffix"`
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PipelineConfig configures the LLM committee.
type PipelineConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// NewsConfig configures the news search used by the news role.
type NewsConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Results        int           `mapstructure:"results"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines job completion notifications.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// WatchlistConfig drives periodic cache warm-up.
type WatchlistConfig struct {
	Tickers       []string      `mapstructure:"tickers"`
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
	// Cron is a standard 5-field expression; when set it replaces Interval.
	Cron string `mapstructure:"cron"`
}

// ClientConfig tunes the polling client used by the analyze command.
type ClientConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ANALYST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "equity-analyst")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "data/reports.db")
	v.SetDefault("storage.badger_path", "data/badger")

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("staleness.max_age", "2h")
	v.SetDefault("staleness.max_price_delta", 0.01)

	v.SetDefault("jobs.workers", 4)
	v.SetDefault("jobs.queue_size", 64)
	v.SetDefault("jobs.retention", "0s")

	v.SetDefault("market.default_suffix", ".NS")
	v.SetDefault("market.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.rate_limit", 2.0)
	v.SetDefault("market.user_agent", "equity-analyst/1.0")

	v.SetDefault("pipeline.provider", "claude")
	// empty model selects the provider default
	v.SetDefault("pipeline.model", "")
	v.SetDefault("pipeline.api_key", "")
	v.SetDefault("pipeline.base_url", "")
	v.SetDefault("pipeline.max_tokens", 2048)
	v.SetDefault("pipeline.temperature", 0.2)
	v.SetDefault("pipeline.timeout", "90s")
	v.SetDefault("pipeline.max_retries", 2)

	v.SetDefault("news.base_url", "https://google.serper.dev")
	v.SetDefault("news.api_key", "")
	v.SetDefault("news.results", 8)
	v.SetDefault("news.request_timeout", "10s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("watchlist.tickers", []string{})
	v.SetDefault("watchlist.interval", "30m")
	v.SetDefault("watchlist.align_to_bucket", true)
	v.SetDefault("watchlist.startup_delay", "0s")
	v.SetDefault("watchlist.cron", "")

	v.SetDefault("client.base_url", "http://localhost:8000")
	v.SetDefault("client.poll_interval", "5s")
	v.SetDefault("client.max_attempts", 60)
	v.SetDefault("client.request_timeout", "15s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Staleness.MaxAge <= 0 {
		return fmt.Errorf("staleness.max_age must be greater than zero")
	}
	if c.Staleness.MaxPriceDelta <= 0 {
		return fmt.Errorf("staleness.max_price_delta must be greater than zero")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be greater than zero")
	}
	if c.Jobs.QueueSize < 0 {
		return fmt.Errorf("jobs.queue_size cannot be negative")
	}
	if c.Jobs.Retention < 0 {
		return fmt.Errorf("jobs.retention cannot be negative")
	}
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "postgres", "badger":
	default:
		return fmt.Errorf("storage.driver must be one of sqlite, postgres, badger (got %q)", c.Storage.Driver)
	}
	if strings.EqualFold(c.Storage.Driver, "postgres") && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when storage.driver is postgres")
	}
	switch strings.ToLower(c.Pipeline.Provider) {
	case "claude", "gemini":
	default:
		return fmt.Errorf("pipeline.provider must be claude or gemini (got %q)", c.Pipeline.Provider)
	}
	if len(c.Watchlist.Tickers) > 0 && c.Watchlist.Cron == "" && c.Watchlist.Interval <= 0 {
		return fmt.Errorf("watchlist.interval must be greater than zero")
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be greater than zero")
	}
	if c.Client.MaxAttempts <= 0 {
		return fmt.Errorf("client.max_attempts must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}
