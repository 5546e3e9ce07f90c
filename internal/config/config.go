package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	SessionBackendMemory   = "memory"
	SessionBackendPostgres = "postgres"

	defaultPort           = 8080
	defaultRequestTimeout = 120 * time.Second
	defaultMaxUploadBytes = 15 << 20 // 15 MiB
	defaultSessionTTL     = 7 * 24 * time.Hour
	defaultNoAuthValue    = "none"
)

// Config represents the application configuration parsed from YAML.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	Providers Providers       `yaml:"providers"`
	Themes    []string        `yaml:"themes"`
	Toggles   map[string]bool `yaml:"toggles"`
	LogLevel  string          `yaml:"log_level"`
}

// ServerConfig defines listener configuration.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// SessionConfig selects and tunes the session store.
type SessionConfig struct {
	Backend     string        `yaml:"backend"`
	TTL         time.Duration `yaml:"ttl"`
	DatabaseURL string        `yaml:"database_url"`
}

// Env holds settings that may be overridden from the environment.
type Env struct {
	Port           int           `env:"AICHAT_PORT"`
	SessionBackend string        `env:"AICHAT_SESSION_BACKEND"`
	DatabaseURL    string        `env:"AICHAT_DATABASE_URL"`
	SessionTTL     time.Duration `env:"AICHAT_SESSION_TTL"`
	LogLevel       string        `env:"LOG_LEVEL"`
}

// Load reads YAML configuration from disk, applies environment overrides
// and validates the result. A .env file next to the configuration is
// loaded first; ${VAR} references in the YAML are expanded afterwards.
func Load(path string) (Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("resolve config path: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(absPath), ".env")); err != nil {
		return Config{}, err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("read config file %q: %w", absPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("parse config file %q: %w", absPath, err)
	}

	var overrides Env
	if err := env.Parse(&overrides); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	cfg.ApplyEnv(overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML after expanding environment references and fills in
// defaults. It does not validate.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(expandEnv(data), &cfg); err != nil {
		return Config{}, err
	}
	cfg.setDefaults()
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references. A bare $ is left alone.
func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = defaultRequestTimeout
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = defaultMaxUploadBytes
	}
	if c.Session.Backend == "" {
		c.Session.Backend = SessionBackendMemory
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = defaultSessionTTL
	}
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.Name == "" {
			p.Name = p.ID
		}
		if p.NoAuthValue == "" {
			p.NoAuthValue = defaultNoAuthValue
		}
	}
}

// ApplyEnv overlays non-zero environment settings.
func (c *Config) ApplyEnv(e Env) {
	if e.Port != 0 {
		c.Server.Port = e.Port
	}
	if e.SessionBackend != "" {
		c.Session.Backend = e.SessionBackend
	}
	if e.DatabaseURL != "" {
		c.Session.DatabaseURL = e.DatabaseURL
	}
	if e.SessionTTL != 0 {
		c.Session.TTL = e.SessionTTL
	}
	if e.LogLevel != "" {
		c.LogLevel = e.LogLevel
	}
}

// Validate performs strict sanity checks on the configuration.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout must not be negative, got %s", c.Server.RequestTimeout)
	}
	if c.Server.MaxUploadBytes < 0 {
		return fmt.Errorf("server.max_upload_bytes must not be negative, got %d", c.Server.MaxUploadBytes)
	}

	switch c.Session.Backend {
	case SessionBackendMemory:
	case SessionBackendPostgres:
		if strings.TrimSpace(c.Session.DatabaseURL) == "" {
			return errors.New("session.database_url must be provided for the postgres backend")
		}
	default:
		return fmt.Errorf("session.backend %q must be one of %q or %q", c.Session.Backend, SessionBackendMemory, SessionBackendPostgres)
	}

	if len(c.Providers) == 0 {
		return errors.New("at least one provider must be configured")
	}

	seen := make(map[string]struct{}, len(c.Providers))
	for _, provider := range c.Providers {
		id := strings.ToLower(provider.ID)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("provider %s: configured more than once", provider.ID)
		}
		seen[id] = struct{}{}

		if err := validateProvider(provider); err != nil {
			return err
		}
	}

	return nil
}

func validateProvider(provider NamedProvider) error {
	if strings.TrimSpace(provider.ID) == "" {
		return errors.New("provider id must not be empty")
	}
	if strings.TrimSpace(provider.Endpoint) == "" {
		return fmt.Errorf("provider %s: endpoint must be provided", provider.ID)
	}
	if len(provider.Models) == 0 {
		return fmt.Errorf("provider %s: at least one model must be configured", provider.ID)
	}

	seen := make(map[string]struct{}, len(provider.Models))
	for _, model := range provider.Models {
		id := strings.ToLower(strings.TrimSpace(model.ID))
		if id == "" {
			return fmt.Errorf("provider %s: model id must not be empty", provider.ID)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("provider %s: model %q configured more than once", provider.ID, model.ID)
		}
		seen[id] = struct{}{}

		if model.Pricing != nil && (model.Pricing.Input < 0 || model.Pricing.Output < 0) {
			return fmt.Errorf("provider %s: model %q pricing must not be negative", provider.ID, model.ID)
		}
	}

	return nil
}

// SlogLevel maps the configured log level to slog. Unknown values fall back
// to INFO.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToUpper(strings.TrimSpace(c.LogLevel)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
