package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := value.Value
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures runtime configuration for vaultd.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	StateDir      string          `yaml:"state_dir"`
	NodeConfig    string          `yaml:"node_config"`
	DatabasePath  string          `yaml:"database"`
	Log           LogConfig       `yaml:"log"`
	Oracle        OracleConfig    `yaml:"oracle"`
	Feeds         []Feed          `yaml:"feeds"`
	Auth          AuthConfig      `yaml:"auth"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	ShutdownGrace Duration        `yaml:"shutdown_grace"`
}

// LogConfig controls the optional rotating file sink.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Debug      bool   `yaml:"debug"`
}

// OracleConfig tunes the feed polling loop.
type OracleConfig struct {
	Interval Duration `yaml:"interval"`
	Identity string   `yaml:"identity"`
	Timeout  Duration `yaml:"timeout"`
}

// Feed describes an upstream vendor payload endpoint bound to one vault.
type Feed struct {
	Name     string `yaml:"name"`
	Vendor   string `yaml:"vendor"`
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Vault    string `yaml:"vault"`
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	Disabled   bool     `yaml:"disabled"`
	HMACSecret string   `yaml:"hmac_secret"`
	Issuer     string   `yaml:"issuer"`
	Audience   string   `yaml:"audience"`
	ClockSkew  Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds requests per client.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// Load reads configuration from the supplied path.
func Load(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7080"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "./rift-data/state"
	}
	if cfg.NodeConfig == "" {
		cfg.NodeConfig = "./rift.toml"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "/var/data/vaultd.sqlite"
	}
	if cfg.Oracle.Interval.Duration == 0 {
		cfg.Oracle.Interval.Duration = 30 * time.Second
	}
	if cfg.Oracle.Timeout.Duration == 0 {
		cfg.Oracle.Timeout.Duration = 10 * time.Second
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 50
	}
	if cfg.ShutdownGrace.Duration == 0 {
		cfg.ShutdownGrace.Duration = 10 * time.Second
	}
}

func validate(cfg Config) error {
	if !cfg.Auth.Disabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth.hmac_secret must be configured unless auth is disabled")
	}
	if len(cfg.Feeds) > 0 && !common.IsHexAddress(strings.TrimSpace(cfg.Oracle.Identity)) {
		return fmt.Errorf("oracle.identity must be a hex address when feeds are configured")
	}
	seen := make(map[string]struct{}, len(cfg.Feeds))
	for i, feed := range cfg.Feeds {
		name := strings.TrimSpace(feed.Name)
		if name == "" {
			return fmt.Errorf("feeds[%d]: name required", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("feeds[%d]: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(feed.Endpoint) == "" {
			return fmt.Errorf("feeds[%d]: endpoint required", i)
		}
		if strings.TrimSpace(feed.Vendor) == "" {
			return fmt.Errorf("feeds[%d]: vendor required", i)
		}
		if !common.IsHexAddress(strings.TrimSpace(feed.Vault)) {
			return fmt.Errorf("feeds[%d]: vault must be a hex address", i)
		}
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must be non-negative")
	}
	return nil
}
