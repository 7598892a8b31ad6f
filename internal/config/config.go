package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the paperbroker service.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Server    Server    `yaml:"server"`
	Alpaca    Alpaca    `yaml:"alpaca"`
	Logging   Logging   `yaml:"logging"`
	Account   Account   `yaml:"account"`
	Brokerage Brokerage `yaml:"brokerage"`
	Risk      Risk      `yaml:"risk"`
	Quotes    Quotes    `yaml:"quotes"`
	Refresh   Refresh   `yaml:"refresh"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Account sets up the virtual account ledger.
type Account struct {
	DefaultID      string  `yaml:"default_id"`
	InitialBalance float64 `yaml:"initial_balance"`
}

// Brokerage defines the fee schedule applied to executions.
type Brokerage struct {
	EquityRate float64 `yaml:"equity_rate"`
	EquityCap  float64 `yaml:"equity_cap"`
	OptionFlat float64 `yaml:"option_flat"`
}

// Risk defines pre-trade limits. Zero values disable the corresponding
// check.
type Risk struct {
	MaxOpenPositions int     `yaml:"max_open_positions"`
	MaxOrderPct      float64 `yaml:"max_order_pct"`
}

// Quotes configures the price source. Provider is "alpaca" or "static";
// the static provider serves the fixed prices listed under Static and is
// mainly useful for local runs without market-data credentials.
type Quotes struct {
	Provider        string             `yaml:"provider"`
	CacheTTLSec     int                `yaml:"cache_ttl_sec"`
	TimeoutSec      int                `yaml:"timeout_sec"`
	MaxRetries      int                `yaml:"max_retries"`
	RateLimitPerMin int                `yaml:"rate_limit_per_min"`
	Static          map[string]float64 `yaml:"static"`
}

// Refresh controls the background sweeps: position mark-to-market and
// pending-order trigger evaluation.
type Refresh struct {
	IntervalSec int `yaml:"interval_sec"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills in
// defaults for anything left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// Default returns a configuration with every field at its default, for
// running without a config file.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills zero-valued fields with working defaults.
func applyDefaults(cfg *Config) {
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "paperbroker.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Account.DefaultID == "" {
		cfg.Account.DefaultID = "default"
	}
	if cfg.Account.InitialBalance == 0 {
		cfg.Account.InitialBalance = 1000000
	}
	if cfg.Brokerage.EquityRate == 0 {
		cfg.Brokerage.EquityRate = 0.0003
	}
	if cfg.Brokerage.EquityCap == 0 {
		cfg.Brokerage.EquityCap = 20
	}
	if cfg.Brokerage.OptionFlat == 0 {
		cfg.Brokerage.OptionFlat = 20
	}
	if cfg.Quotes.Provider == "" {
		cfg.Quotes.Provider = "alpaca"
	}
	if cfg.Quotes.CacheTTLSec == 0 {
		cfg.Quotes.CacheTTLSec = 5
	}
	if cfg.Quotes.TimeoutSec == 0 {
		cfg.Quotes.TimeoutSec = 10
	}
	if cfg.Quotes.MaxRetries == 0 {
		cfg.Quotes.MaxRetries = 3
	}
	if cfg.Quotes.RateLimitPerMin == 0 {
		cfg.Quotes.RateLimitPerMin = 200
	}
	if cfg.Refresh.IntervalSec == 0 {
		cfg.Refresh.IntervalSec = 30
	}
}
