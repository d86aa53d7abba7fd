package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultSQLitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

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

// Supported state stores. Bolt keeps state in the single file DataDir/state.db.
const (
	StateBackendLevelDB = "leveldb"
	StateBackendBolt    = "bolt"
)

// Config captures runtime configuration for saled.
type Config struct {
	ListenAddress   string               `yaml:"listen"`
	DeploymentPath  string               `yaml:"deployment"`
	DataDir         string               `yaml:"data_dir"`
	StateBackend    string               `yaml:"state_backend"`
	JournalDSN      string               `yaml:"journal_dsn"`
	Auth            AuthConfig           `yaml:"auth"`
	RateLimits      map[string]RateLimit `yaml:"rate_limits"`
	TLS             TLSConfig            `yaml:"tls"`
	Log             LogConfig            `yaml:"log"`
	Webhook         WebhookConfig        `yaml:"webhook"`
	ShutdownTimeout Duration             `yaml:"shutdown_timeout"`
}

// AuthConfig controls bearer token validation.
type AuthConfig struct {
	HMACSecret    string   `yaml:"hmac_secret"`
	HMACSecretEnv string   `yaml:"hmac_secret_env"`
	Issuer        string   `yaml:"issuer"`
	Audience      string   `yaml:"audience"`
	ScopeClaim    string   `yaml:"scope_claim"`
	AdminScope    string   `yaml:"admin_scope"`
	ClockSkew     Duration `yaml:"clock_skew"`
}

// RateLimit throttles one route group per client.
type RateLimit struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// TLSConfig toggles HTTPS.
type TLSConfig struct {
	Disable  bool   `yaml:"disable"`
	CertPath string `yaml:"cert"`
	KeyPath  string `yaml:"key"`
}

// WebhookConfig forwards committed sale events to an external endpoint.
// Forwarding is disabled when URL is empty.
type WebhookConfig struct {
	URL         string   `yaml:"url"`
	SecretEnv   string   `yaml:"secret_env"`
	Events      []string `yaml:"events"`
	MaxAttempts int      `yaml:"max_attempts"`
	Secret      string   `yaml:"-"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
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
	if err := cfg.resolveSecret(); err != nil {
		return cfg, err
	}
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":7080"
	}
	if cfg.DeploymentPath == "" {
		cfg.DeploymentPath = "services/saled/deployment.toml"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "/var/data/saled/state"
	}
	if cfg.StateBackend == "" {
		cfg.StateBackend = StateBackendLevelDB
	}
	if cfg.JournalDSN == "" {
		cfg.JournalDSN = "/var/data/saled/journal.sqlite"
	}
	if cfg.Auth.ScopeClaim == "" {
		cfg.Auth.ScopeClaim = "scope"
	}
	if cfg.Auth.AdminScope == "" {
		cfg.Auth.AdminScope = "sale:admin"
	}
	if cfg.Auth.ClockSkew.Duration == 0 {
		cfg.Auth.ClockSkew.Duration = 2 * time.Minute
	}
	if cfg.ShutdownTimeout.Duration == 0 {
		cfg.ShutdownTimeout.Duration = 5 * time.Second
	}
	if cfg.RateLimits == nil {
		cfg.RateLimits = map[string]RateLimit{}
	}
	if _, ok := cfg.RateLimits["trade"]; !ok {
		cfg.RateLimits["trade"] = RateLimit{RequestsPerMinute: 60, Burst: 10}
	}
}

func (cfg *Config) resolveSecret() error {
	if strings.TrimSpace(cfg.Webhook.URL) != "" {
		if cfg.Webhook.SecretEnv == "" {
			return fmt.Errorf("webhook.secret_env must be configured when webhook.url is set")
		}
		secret := strings.TrimSpace(os.Getenv(cfg.Webhook.SecretEnv))
		if secret == "" {
			return fmt.Errorf("webhook.secret_env %s is empty", cfg.Webhook.SecretEnv)
		}
		cfg.Webhook.Secret = secret
	}
	if cfg.Auth.HMACSecret != "" || cfg.Auth.HMACSecretEnv == "" {
		return nil
	}
	value := strings.TrimSpace(os.Getenv(cfg.Auth.HMACSecretEnv))
	if value == "" {
		return fmt.Errorf("auth.hmac_secret_env %s is empty", cfg.Auth.HMACSecretEnv)
	}
	cfg.Auth.HMACSecret = value
	return nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth.hmac_secret must be configured")
	}
	if !cfg.TLS.Disable && (cfg.TLS.CertPath == "" || cfg.TLS.KeyPath == "") {
		return fmt.Errorf("tls.cert and tls.key must be configured unless tls.disable is set")
	}
	switch cfg.StateBackend {
	case StateBackendLevelDB, StateBackendBolt:
	default:
		return fmt.Errorf("state_backend %q must be leveldb or bolt", cfg.StateBackend)
	}
	for name, limit := range cfg.RateLimits {
		if limit.RequestsPerMinute < 0 || limit.Burst < 0 {
			return fmt.Errorf("rate_limits.%s must not be negative", name)
		}
	}
	return nil
}

// JournalDSNResolved converts a bare filesystem path into a SQLite DSN.
// URLs and DSNs with a scheme are returned untouched.
func (cfg Config) JournalDSNResolved() (string, error) {
	trimmed := strings.TrimSpace(cfg.JournalDSN)
	if strings.Contains(trimmed, "://") || strings.HasPrefix(trimmed, "file:") {
		return trimmed, nil
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve journal path: %w", err)
	}
	return fmt.Sprintf("file:%s?%s", abs, defaultSQLitePragmas), nil
}
