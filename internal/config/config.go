// Package config loads agent configuration from the dozeguard home
// directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jmelkko/dozeguard/internal/monitor"
	"github.com/jmelkko/dozeguard/internal/power"
	"github.com/jmelkko/dozeguard/internal/probe"
)

// Config holds all agent configuration.
type Config struct {
	Monitor MonitorConfig `toml:"monitor"`
	Suspend SuspendConfig `toml:"suspend"`
	Logging LoggingConfig `toml:"logging"`
	Store   StoreConfig   `toml:"store"`
}

// MonitorConfig controls the polling cadence and the diagnostics pipeline.
type MonitorConfig struct {
	PollIntervalSeconds       int    `toml:"poll_interval_seconds"`
	IdleThresholdMinutes      int    `toml:"idle_threshold_minutes"`
	DiagnosticsTimeoutSeconds int    `toml:"diagnostics_timeout_seconds"`
	PowercfgPath              string `toml:"powercfg_path"`
}

// PollInterval returns the tick cadence, falling back to the default for
// unset or nonsense values.
func (m MonitorConfig) PollInterval() time.Duration {
	if m.PollIntervalSeconds <= 0 {
		return monitor.DefaultPollInterval
	}
	return time.Duration(m.PollIntervalSeconds) * time.Second
}

// IdleThreshold returns the idle duration required before suspending.
func (m MonitorConfig) IdleThreshold() time.Duration {
	if m.IdleThresholdMinutes <= 0 {
		return monitor.DefaultIdleThreshold
	}
	return time.Duration(m.IdleThresholdMinutes) * time.Minute
}

// DiagnosticsTimeout returns the per-invocation diagnostics timeout.
func (m MonitorConfig) DiagnosticsTimeout() time.Duration {
	if m.DiagnosticsTimeoutSeconds <= 0 {
		return probe.DefaultDiagnosticsTimeout
	}
	return time.Duration(m.DiagnosticsTimeoutSeconds) * time.Second
}

// SuspendConfig controls the suspend transition and hook commands.
type SuspendConfig struct {
	Hibernate          bool   `toml:"hibernate"`
	PreSleepCommand    string `toml:"pre_sleep_command"`
	PostWakeCommand    string `toml:"post_wake_command"`
	HookTimeoutSeconds int    `toml:"hook_timeout_seconds"`
}

// HookTimeout returns the per-hook execution bound.
func (s SuspendConfig) HookTimeout() time.Duration {
	if s.HookTimeoutSeconds <= 0 {
		return power.DefaultHookTimeout
	}
	return time.Duration(s.HookTimeoutSeconds) * time.Second
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// StoreConfig controls the local rule and history store.
type StoreConfig struct {
	Path    string `toml:"path"`
	KeyPath string `toml:"key_path"`
}

// DefaultConfig returns the configuration used when no config file exists.
func DefaultConfig() Config {
	home := Home()
	return Config{
		Monitor: MonitorConfig{
			PollIntervalSeconds:       1,
			IdleThresholdMinutes:      20,
			DiagnosticsTimeoutSeconds: 4,
			PowercfgPath:              probe.DefaultPowercfgPath,
		},
		Suspend: SuspendConfig{
			Hibernate:          false,
			HookTimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(home, "dozeguard.log"),
		},
		Store: StoreConfig{
			Path:    filepath.Join(home, "dozeguard.db"),
			KeyPath: filepath.Join(home, "store.key"),
		},
	}
}

// Load reads the config at path, or the default location when path is empty,
// falling back to defaults when no file exists yet.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, or the default location when path is
// empty.
func Save(cfg Config, path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Home(), "config.toml")
}

// StatusPath returns the location of the agent's published status file.
func StatusPath() string {
	return filepath.Join(Home(), "status.json")
}

// Home returns the dozeguard data directory.
func Home() string {
	if env := os.Getenv("DOZEGUARD_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dozeguard")
}
