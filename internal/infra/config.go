package infra

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds every application setting. Loaded from YAML first, then
// sensitive values are overridden from the environment.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr            string   `yaml:"addr"`
		AllowedOrigins  []string `yaml:"allowed_origins"`
		ShutdownTimeout int      `yaml:"shutdown_timeout_sec"`
	} `yaml:"server"`

	API struct {
		BitoPro struct {
			RestURL   string   `yaml:"rest_url"`
			WSURL     string   `yaml:"ws_url"`
			APIKey    string   `yaml:"api_key"`
			APISecret string   `yaml:"api_secret"`
			Email     string   `yaml:"email"`
			Pairs     []string `yaml:"pairs"`
		} `yaml:"bitopro"`
		Notion struct {
			BaseURL    string `yaml:"base_url"`
			Token      string `yaml:"token"`
			DatabaseID string `yaml:"database_id"`
		} `yaml:"notion"`
		Finance struct {
			FxTTLMin           int     `yaml:"fx_ttl_min"`
			StockTTLMin        int     `yaml:"stock_ttl_min"`
			ProviderTimeoutSec int     `yaml:"provider_timeout_sec"`
			DefaultUsdTwd      float64 `yaml:"default_usd_twd"`
		} `yaml:"finance"`
	} `yaml:"api"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// envOverrides carries the secrets and deployment knobs that may not live in
// the YAML file. Processed with the BITODASH prefix.
type envOverrides struct {
	Addr             string `envconfig:"ADDR"`
	APIKey           string `envconfig:"BITOPRO_KEY"`
	APISecret        string `envconfig:"BITOPRO_SECRET"`
	Email            string `envconfig:"BITOPRO_EMAIL"`
	NotionToken      string `envconfig:"NOTION_TOKEN"`
	NotionDatabaseID string `envconfig:"NOTION_DATABASE_ID"`
	LogLevel         string `envconfig:"LOG_LEVEL"`
}

// LoadConfig reads and parses the configuration file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := overrideWithEnv(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10
	}
	if c.API.Finance.FxTTLMin <= 0 {
		c.API.Finance.FxTTLMin = 30
	}
	if c.API.Finance.StockTTLMin <= 0 {
		c.API.Finance.StockTTLMin = 5
	}
	if c.API.Finance.ProviderTimeoutSec <= 0 {
		c.API.Finance.ProviderTimeoutSec = 5
	}
	if c.API.Finance.DefaultUsdTwd <= 0 {
		// Documented hardcoded fallback so downstream arithmetic never
		// divides by zero when every FX provider is down on a cold cache.
		c.API.Finance.DefaultUsdTwd = 32.5
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.API.BitoPro.RestURL == "" || !hasPrefix(c.API.BitoPro.RestURL, "http") {
		return fmt.Errorf("invalid BitoPro REST URL: %s", c.API.BitoPro.RestURL)
	}
	if c.API.BitoPro.WSURL == "" || (!hasPrefix(c.API.BitoPro.WSURL, "ws://") && !hasPrefix(c.API.BitoPro.WSURL, "wss://")) {
		return fmt.Errorf("invalid BitoPro WS URL: %s", c.API.BitoPro.WSURL)
	}
	if len(c.API.BitoPro.Pairs) == 0 {
		return fmt.Errorf("at least one trading pair is required")
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv replaces config values with environment variables when set.
func overrideWithEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("BITODASH", &env); err != nil {
		return fmt.Errorf("processing env overrides: %w", err)
	}

	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
	if env.APIKey != "" {
		cfg.API.BitoPro.APIKey = env.APIKey
	}
	if env.APISecret != "" {
		cfg.API.BitoPro.APISecret = env.APISecret
	}
	if env.Email != "" {
		cfg.API.BitoPro.Email = env.Email
	}
	if env.NotionToken != "" {
		cfg.API.Notion.Token = env.NotionToken
	}
	if env.NotionDatabaseID != "" {
		cfg.API.Notion.DatabaseID = env.NotionDatabaseID
	}
	if env.LogLevel != "" {
		cfg.Logging.Level = env.LogLevel
	}
	return nil
}
