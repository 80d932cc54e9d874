// Package config loads the TOML configuration, layering the user file under
// ~/.config/baton over a config.toml in the working directory.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Engine string `koanf:"engine"` // "beep" (default) or "null"

	// Playback behaviour tuning.
	Playback PlaybackConfig `koanf:"playback"`

	// Desktop integration toggles.
	Notifications NotificationsConfig `koanf:"notifications"`
	Mpris         MprisConfig         `koanf:"mpris"`
}

// PlaybackConfig holds the controller tuning knobs.
type PlaybackConfig struct {
	PreviousBehaviour      string `koanf:"previous_behaviour"`       // "restart" (default) or "previous"
	SeekStepSeconds        int    `koanf:"seek_step_seconds"`        // default: 5
	VolumeStep             int    `koanf:"volume_step"`              // default: 5
	MaxConsecutiveErrors   int    `koanf:"max_consecutive_errors"`   // default: 3
	RewindThresholdSeconds int    `koanf:"rewind_threshold_seconds"` // default: 8
}

// NotificationsConfig controls desktop notifications.
type NotificationsConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

// MprisConfig controls the MPRIS D-Bus surface.
type MprisConfig struct {
	Enabled *bool `koanf:"enabled"` // default: true
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := getConfigPaths()

	for _, path := range configPaths {
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

	// 1. ~/.config/baton/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "baton", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

// GetPlaybackConfig returns the playback configuration with defaults applied.
// Out-of-range or unknown values fall back to the default with a warning.
func (c *Config) GetPlaybackConfig() PlaybackConfig {
	cfg := c.Playback

	switch cfg.PreviousBehaviour {
	case "", "restart", "previous":
	default:
		log.Warn().Str("previous_behaviour", cfg.PreviousBehaviour).
			Msg("unknown previous_behaviour, using restart")
		cfg.PreviousBehaviour = "restart"
	}
	if cfg.PreviousBehaviour == "" {
		cfg.PreviousBehaviour = "restart"
	}
	if cfg.SeekStepSeconds <= 0 {
		cfg.SeekStepSeconds = 5
	}
	if cfg.VolumeStep <= 0 || cfg.VolumeStep > 100 {
		cfg.VolumeStep = 5
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = 3
	}
	if cfg.RewindThresholdSeconds <= 0 {
		cfg.RewindThresholdSeconds = 8
	}

	return cfg
}

// SeekStep returns the configured seek step as a duration.
func (p PlaybackConfig) SeekStep() time.Duration {
	return time.Duration(p.SeekStepSeconds) * time.Second
}

// RewindThreshold returns the configured rewind threshold as a duration.
func (p PlaybackConfig) RewindThreshold() time.Duration {
	return time.Duration(p.RewindThresholdSeconds) * time.Second
}

// NotificationsEnabled reports whether desktop notifications are on.
func (c *Config) NotificationsEnabled() bool {
	return c.Notifications.Enabled == nil || *c.Notifications.Enabled
}

// MprisEnabled reports whether the MPRIS surface is on.
func (c *Config) MprisEnabled() bool {
	return c.Mpris.Enabled == nil || *c.Mpris.Enabled
}
