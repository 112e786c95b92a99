package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. MARQUEE_PROVIDER_NODES.
const EnvPrefix = "MARQUEE"

// Config holds all application configuration
type Config struct {
	Provider ProviderConfig `mapstructure:"provider"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProviderConfig selects and tunes the metadata backend
type ProviderConfig struct {
	Backend         string        `mapstructure:"backend"`
	Nodes           []string      `mapstructure:"nodes"` // API keys, tried in order
	Timeout         time.Duration `mapstructure:"timeout"`
	Pages           int           `mapstructure:"pages"`
	RotationRetries int           `mapstructure:"rotation_retries"` // extra nodes tried after a key failure
	RequireArt      bool          `mapstructure:"require_art"`
	MaxCandidates   int           `mapstructure:"max_candidates"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	Concurrency     int           `mapstructure:"concurrency"`
	Language        string        `mapstructure:"language"`
}

// FallbackConfig configures the generative fallback
type FallbackConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	BatchSize int           `mapstructure:"batch_size"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// CacheConfig configures search caching and the durable store
type CacheConfig struct {
	TTL         time.Duration `mapstructure:"ttl"`
	FallbackTTL time.Duration `mapstructure:"fallback_ttl"`
	MaxEntries  int           `mapstructure:"max_entries"`
	Durable     bool          `mapstructure:"durable"`
	Path        string        `mapstructure:"path"`
}

type PlaybackConfig struct {
	AutoplayCountdown time.Duration `mapstructure:"autoplay_countdown"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// SessionTTL closes playback sessions that see no request for this long.
	SessionTTL  time.Duration `mapstructure:"session_ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
}

// LoggingConfig controls the structured log. An empty File logs to stderr.
type LoggingConfig struct {
	File       string `mapstructure:"file"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Dir returns the marquee state directory
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".marquee"), nil
}

// Path returns the path to the config file
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	dir, err := Dir()
	if err != nil {
		dir = ".marquee"
	}
	return &Config{
		Provider: ProviderConfig{
			Backend:         "omdb",
			Nodes:           []string{},
			Timeout:         8 * time.Second,
			Pages:           2,
			RotationRetries: 1,
			RequireArt:      true,
			MaxCandidates:   0,
			RatePerSecond:   10,
			Concurrency:     8,
			Language:        "en-US",
		},
		Fallback: FallbackConfig{
			Enabled:   true,
			Model:     "gemini-2.0-flash",
			BatchSize: 10,
			Timeout:   30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:         time.Hour,
			FallbackTTL: 5 * time.Minute,
			MaxEntries:  512,
			Durable:     true,
			Path:        filepath.Join(dir, "marquee.db"),
		},
		Playback: PlaybackConfig{
			AutoplayCountdown: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8787",
			SessionTTL:  2 * time.Hour,
			MaxSessions: 256,
		},
		Logging: LoggingConfig{
			File:       filepath.Join(dir, "marquee.log"),
			Level:      "INFO",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 30,
			Compress:   false,
		},
	}
}

// settings flattens cfg into viper keys. Durations are written as strings
// so the file stays hand editable.
func (cfg *Config) settings() map[string]any {
	return map[string]any{
		"provider.backend":          cfg.Provider.Backend,
		"provider.nodes":            cfg.Provider.Nodes,
		"provider.timeout":          cfg.Provider.Timeout.String(),
		"provider.pages":            cfg.Provider.Pages,
		"provider.rotation_retries": cfg.Provider.RotationRetries,
		"provider.require_art":      cfg.Provider.RequireArt,
		"provider.max_candidates":   cfg.Provider.MaxCandidates,
		"provider.rate_per_second":  cfg.Provider.RatePerSecond,
		"provider.concurrency":      cfg.Provider.Concurrency,
		"provider.language":         cfg.Provider.Language,

		"fallback.enabled":    cfg.Fallback.Enabled,
		"fallback.api_key":    cfg.Fallback.APIKey,
		"fallback.model":      cfg.Fallback.Model,
		"fallback.batch_size": cfg.Fallback.BatchSize,
		"fallback.timeout":    cfg.Fallback.Timeout.String(),

		"cache.ttl":          cfg.Cache.TTL.String(),
		"cache.fallback_ttl": cfg.Cache.FallbackTTL.String(),
		"cache.max_entries":  cfg.Cache.MaxEntries,
		"cache.durable":      cfg.Cache.Durable,
		"cache.path":         cfg.Cache.Path,

		"playback.autoplay_countdown": cfg.Playback.AutoplayCountdown.String(),

		"server.addr":         cfg.Server.Addr,
		"server.session_ttl":  cfg.Server.SessionTTL.String(),
		"server.max_sessions": cfg.Server.MaxSessions,

		"logging.file":         cfg.Logging.File,
		"logging.level":        cfg.Logging.Level,
		"logging.max_size_mb":  cfg.Logging.MaxSizeMB,
		"logging.max_backups":  cfg.Logging.MaxBackups,
		"logging.max_age_days": cfg.Logging.MaxAgeDays,
		"logging.compress":     cfg.Logging.Compress,
	}
}

// newViper returns a viper instance seeded with the defaults so every key
// is known to AutomaticEnv.
func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range DefaultConfig().settings() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from path, or the default path when path is
// empty. A missing file yields the defaults with environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return nil, err
		}
	}

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Provider.Nodes = cleanNodes(cfg.Provider.Nodes)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as indented JSON
func (cfg *Config) Save(path string) error {
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg.Document(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Document returns the configuration as the nested map written to disk.
func (cfg *Config) Document() map[string]any {
	v := viper.New()
	for key, value := range cfg.settings() {
		v.Set(key, value)
	}
	return v.AllSettings()
}

// Redacted returns a copy with API keys masked for display.
func (cfg *Config) Redacted() *Config {
	out := *cfg
	out.Provider.Nodes = make([]string, len(cfg.Provider.Nodes))
	for idx, node := range cfg.Provider.Nodes {
		out.Provider.Nodes[idx] = mask(node)
	}
	out.Fallback.APIKey = mask(cfg.Fallback.APIKey)
	return &out
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}

// Validate reports every invalid setting at once.
func (cfg *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(cfg.Provider.Backend) == "" {
		errs = append(errs, errors.New("provider.backend is required"))
	}
	if cfg.Provider.Timeout <= 0 {
		errs = append(errs, errors.New("provider.timeout must be positive"))
	}
	if cfg.Provider.Pages < 1 || cfg.Provider.Pages > 3 {
		errs = append(errs, fmt.Errorf("provider.pages must be between 1 and 3, got %d", cfg.Provider.Pages))
	}
	if cfg.Provider.RotationRetries < 0 {
		errs = append(errs, errors.New("provider.rotation_retries cannot be negative"))
	}
	if cfg.Provider.MaxCandidates < 0 {
		errs = append(errs, errors.New("provider.max_candidates cannot be negative"))
	}
	if cfg.Provider.Concurrency < 1 {
		errs = append(errs, errors.New("provider.concurrency must be at least 1"))
	}
	if cfg.Fallback.BatchSize < 1 {
		errs = append(errs, errors.New("fallback.batch_size must be at least 1"))
	}
	if cfg.Cache.TTL <= 0 || cfg.Cache.FallbackTTL <= 0 {
		errs = append(errs, errors.New("cache ttls must be positive"))
	}
	if cfg.Cache.Durable && strings.TrimSpace(cfg.Cache.Path) == "" {
		errs = append(errs, errors.New("cache.path is required when cache.durable is set"))
	}
	if cfg.Playback.AutoplayCountdown < 0 {
		errs = append(errs, errors.New("playback.autoplay_countdown cannot be negative"))
	}
	if cfg.Server.SessionTTL <= 0 {
		errs = append(errs, errors.New("server.session_ttl must be positive"))
	}
	if cfg.Server.MaxSessions < 1 {
		errs = append(errs, errors.New("server.max_sessions must be at least 1"))
	}
	switch strings.ToUpper(cfg.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of DEBUG, INFO, WARN, ERROR", cfg.Logging.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// FallbackKey returns the generator API key, or "" when the fallback is off.
func (cfg *Config) FallbackKey() string {
	if !cfg.Fallback.Enabled {
		return ""
	}
	return strings.TrimSpace(cfg.Fallback.APIKey)
}

func cleanNodes(nodes []string) []string {
	out := make([]string, 0, len(nodes))
	for _, node := range nodes {
		// Env overrides arrive as one comma separated value.
		for _, part := range strings.Split(node, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
