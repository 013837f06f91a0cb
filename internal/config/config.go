package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. MARKETDASH_API_URL.
const EnvPrefix = "MARKETDASH"

// EnvConfigPath names the variable holding the YAML config path.
const EnvConfigPath = EnvPrefix + "_CONFIG"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the dashboard and its fixture
// backend.
type Config struct {
	API       API       `yaml:"api"`
	Dashboard Dashboard `yaml:"dashboard"`
	Logging   Logging   `yaml:"logging" envconfig:"LOG"`
	Mock      Mock      `yaml:"mock"`
}

// API configures the backend client.
type API struct {
	BaseURL         string        `yaml:"base_url" envconfig:"URL"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min" envconfig:"RATE_LIMIT"`
}

// Dashboard holds presentation defaults.
type Dashboard struct {
	DefaultTicker string   `yaml:"default_ticker" envconfig:"TICKER"`
	Timeframe     string   `yaml:"timeframe" envconfig:"TIMEFRAME"`
	Period        string   `yaml:"period" envconfig:"PERIOD"`
	Symbols       []string `yaml:"symbols" envconfig:"SYMBOLS"`
}

// Logging configures the application logger. An empty File means stdout
// for servers and a dated file in the temp dir for the terminal UI.
type Logging struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`
	Format string `yaml:"format" envconfig:"FORMAT"`
	File   string `yaml:"file" envconfig:"FILE"`
}

// Mock configures the fixture backend.
type Mock struct {
	Addr       string `yaml:"addr" envconfig:"ADDR"`
	GRPCAddr   string `yaml:"grpc_addr" envconfig:"GRPC_ADDR"`
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR"`
	SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: API{
			BaseURL: "http://localhost:5000/api",
			Timeout: 30 * time.Second,
		},
		Dashboard: Dashboard{
			Timeframe: "1d",
			Period:    "1mo",
			Symbols:   []string{"BTC-USD", "ETH-USD"},
		},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Mock: Mock{
			Addr:       ":5000",
			GRPCAddr:   ":5001",
			DataDir:    "data",
			SQLitePath: "data/marketdash.db",
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load builds the configuration in three layers: built-in defaults, then the
// YAML file at path (skipped when path is empty), then environment overrides.
// A .env file in the working directory is loaded into the environment first
// when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later and obscurely.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must not be negative")
	}
	if c.API.RateLimitPerMin < 0 {
		return fmt.Errorf("api.rate_limit_per_min must not be negative")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format %q: want json or text", c.Logging.Format)
	}
	return nil
}

// InitialRoute is the route the dashboard opens on.
func (c *Config) InitialRoute() string {
	if c.Dashboard.DefaultTicker != "" {
		return "/market/" + strings.ToUpper(c.Dashboard.DefaultTicker)
	}
	return "/"
}
