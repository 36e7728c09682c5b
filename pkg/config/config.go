package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DriftPolicy controls how an adopter edit to a default-owned region with no
// competing template change is reported.
type DriftPolicy string

const (
	// DriftLocalWins keeps the local content silently.
	DriftLocalWins DriftPolicy = "local-wins"
	// DriftWarn keeps the local content and records a low-severity conflict.
	DriftWarn DriftPolicy = "warn"
	// DriftConflict escalates the edit to a blocking conflict.
	DriftConflict DriftPolicy = "conflict"
)

// Config holds all configuration for tplsync
type Config struct {
	Sync   SyncConfig   `mapstructure:"sync"`
	Fetch  FetchConfig  `mapstructure:"fetch"`
	Render RenderConfig `mapstructure:"render"`
}

// RenderConfig supplies adopter-side values for the template's render
// rules, keyed by placeholder name.
type RenderConfig struct {
	Values map[string]string `mapstructure:"values"`
}

// SyncConfig holds reconciliation behavior options
type SyncConfig struct {
	// DriftPolicy selects the disposition for drift-without-annotation.
	DriftPolicy DriftPolicy `mapstructure:"drift_policy"`
	// Workers bounds parallel per-file merges during plan (0 = NumCPU).
	Workers int `mapstructure:"workers"`
	// CommentPrefixes maps file extension (or exact basename) to the
	// comment prefix that delimits annotation marker lines.
	CommentPrefixes map[string]string `mapstructure:"comment_prefixes"`
}

// FetchConfig holds template source fetch options
type FetchConfig struct {
	Retries int           `mapstructure:"retries"`
	Backoff time.Duration `mapstructure:"backoff"`
}

var defaultConfig = Config{
	Sync: SyncConfig{
		DriftPolicy:     DriftWarn,
		Workers:         0,
		CommentPrefixes: DefaultCommentPrefixes(),
	},
	Fetch: FetchConfig{
		Retries: 3,
		Backoff: 500 * time.Millisecond,
	},
}

// DefaultCommentPrefixes returns the built-in extension-to-comment-prefix
// table. Keys are extensions including the dot, or exact basenames for
// extensionless well-known files.
func DefaultCommentPrefixes() map[string]string {
	return map[string]string{
		".yml":       "#",
		".yaml":      "#",
		".toml":      "#",
		".ini":       ";",
		".sh":        "#",
		".bash":      "#",
		".py":        "#",
		".rb":        "#",
		".tf":        "#",
		".go":        "//",
		".js":        "//",
		".ts":        "//",
		".jsx":       "//",
		".tsx":       "//",
		".java":      "//",
		".c":         "//",
		".h":         "//",
		".cpp":       "//",
		".rs":        "//",
		".proto":     "//",
		".md":        "<!--",
		".html":      "<!--",
		".xml":       "<!--",
		"Dockerfile": "#",
		"Makefile":   "#",
		".gitignore": "#",
		".env":       "#",
	}
}

// Load reads configuration from .tplsync.yaml in repoRoot (if present),
// layered over built-in defaults, with TPLSYNC_* environment overrides.
func Load(repoRoot string) (*Config, error) {
	// comment_prefixes keys carry dots (".yml"), so the usual "." key
	// delimiter would split them into nested paths.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetConfigName(".tplsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(repoRoot)
	v.SetEnvPrefix("TPLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine; anything else is a user error.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := defaultConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// User-provided prefixes extend rather than replace the built-ins.
	merged := DefaultCommentPrefixes()
	for k, val := range cfg.Sync.CommentPrefixes {
		merged[k] = val
	}
	cfg.Sync.CommentPrefixes = merged

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sync::drift_policy", string(defaultConfig.Sync.DriftPolicy))
	v.SetDefault("sync::workers", defaultConfig.Sync.Workers)
	v.SetDefault("fetch::retries", defaultConfig.Fetch.Retries)
	v.SetDefault("fetch::backoff", defaultConfig.Fetch.Backoff)
}

// Validate checks config invariants that viper cannot express.
func (c *Config) Validate() error {
	switch c.Sync.DriftPolicy {
	case DriftLocalWins, DriftWarn, DriftConflict:
	default:
		return fmt.Errorf("invalid sync.drift_policy %q (want local-wins, warn, or conflict)", c.Sync.DriftPolicy)
	}
	if c.Sync.Workers < 0 {
		return fmt.Errorf("sync.workers must be >= 0, got %d", c.Sync.Workers)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("fetch.retries must be >= 0, got %d", c.Fetch.Retries)
	}
	return nil
}

// Default returns a copy of the built-in configuration.
func Default() *Config {
	cfg := defaultConfig
	cfg.Sync.CommentPrefixes = DefaultCommentPrefixes()
	return &cfg
}
