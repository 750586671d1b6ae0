package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// Last.fm API credentials (required for scrobbling)
	Lastfm LastfmConfig `koanf:"lastfm"`

	// Scrobble eligibility and ledger settings
	Scrobble ScrobbleConfig `koanf:"scrobble"`

	// Delivery queue retry settings
	Queue QueueConfig `koanf:"queue"`
}

// LastfmConfig holds Last.fm API configuration.
type LastfmConfig struct {
	APIKey    string `koanf:"api_key"`
	APISecret string `koanf:"api_secret"`
}

// ScrobbleConfig holds scrobble eligibility and history settings.
type ScrobbleConfig struct {
	CompletionFraction      float64 `koanf:"completion_fraction"`        // fraction of short tracks that must play (default: 0.8)
	CompletionGraceSeconds  int     `koanf:"completion_grace_seconds"`   // allowed shortfall on long tracks (default: 30)
	FallbackMinimumSeconds  int     `koanf:"fallback_minimum_seconds"`   // minimum play time when duration is unknown (default: 30)
	LongTrackMinimumSeconds int     `koanf:"long_track_minimum_seconds"` // duration above which the grace rule applies (default: 60)
	RetentionDays           int     `koanf:"retention_days"`             // dedup ledger retention (default: 30)
	LogSize                 int     `koanf:"log_size"`                   // scrobble log ring size (default: 50)
}

// QueueConfig holds delivery retry settings.
type QueueConfig struct {
	BaseDelaySeconds int `koanf:"base_delay_seconds"` // initial retry delay (default: 30)
	MaxDelayMinutes  int `koanf:"max_delay_minutes"`  // retry delay cap (default: 15)
	MaxAttempts      int `koanf:"max_attempts"`       // attempts before an item is dropped (default: 10)
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/wake/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wake", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

// HasLastfmConfig returns true if Last.fm credentials are configured.
func (c *Config) HasLastfmConfig() bool {
	return c.Lastfm.APIKey != "" && c.Lastfm.APISecret != ""
}

// GetScrobbleConfig returns the scrobble configuration with defaults applied.
func (c *Config) GetScrobbleConfig() ScrobbleConfig {
	cfg := c.Scrobble

	if cfg.CompletionFraction <= 0 || cfg.CompletionFraction > 1 {
		cfg.CompletionFraction = 0.8
	}
	if cfg.CompletionGraceSeconds <= 0 {
		cfg.CompletionGraceSeconds = 30
	}
	if cfg.FallbackMinimumSeconds <= 0 {
		cfg.FallbackMinimumSeconds = 30
	}
	if cfg.LongTrackMinimumSeconds <= 0 {
		cfg.LongTrackMinimumSeconds = 60
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if cfg.LogSize <= 0 {
		cfg.LogSize = 50
	}

	return cfg
}

// GetQueueConfig returns the queue configuration with defaults applied.
func (c *Config) GetQueueConfig() QueueConfig {
	cfg := c.Queue

	if cfg.BaseDelaySeconds <= 0 {
		cfg.BaseDelaySeconds = 30
	}
	if cfg.MaxDelayMinutes <= 0 {
		cfg.MaxDelayMinutes = 15
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}

	return cfg
}

// BaseDelay returns the queue base retry delay as a duration.
func (q QueueConfig) BaseDelay() time.Duration {
	return time.Duration(q.BaseDelaySeconds) * time.Second
}

// MaxDelay returns the queue retry delay cap as a duration.
func (q QueueConfig) MaxDelay() time.Duration {
	return time.Duration(q.MaxDelayMinutes) * time.Minute
}
