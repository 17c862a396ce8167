// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - Durations are configured in milliseconds and exposed through helpers.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// DataDir holds the snapshot files and the backups directory.
	DataDir string `koanf:"data_dir"`

	// PrimaryFile is the flat snapshot read by older consumers.
	PrimaryFile string `koanf:"primary_file"`

	// EnhancedFile is the versioned snapshot preferred on load.
	EnhancedFile string `koanf:"enhanced_file"`

	// BackupDir is relative to DataDir unless absolute.
	BackupDir string `koanf:"backup_dir"`

	// BackupRetention is how many timestamped backups are kept.
	BackupRetention int `koanf:"backup_retention"`

	// SaveDebounceMS is the trailing window that coalesces dirty signals.
	SaveDebounceMS int `koanf:"save_debounce_ms"`

	// HeartbeatIntervalMS is the liveness sweep period.
	HeartbeatIntervalMS int `koanf:"heartbeat_interval_ms"`

	// HeartbeatTimeoutMS is how long a connection may stay silent.
	HeartbeatTimeoutMS int `koanf:"heartbeat_timeout_ms"`

	// PingIntervalMS is the transport-level ping period.
	PingIntervalMS int `koanf:"ping_interval_ms"`

	// ChurnDebounceMS coalesces connect/disconnect notifications.
	ChurnDebounceMS int `koanf:"churn_debounce_ms"`

	// SendQueueSize bounds each connection's outbound queue.
	SendQueueSize int `koanf:"send_queue_size"`

	// DedupeSize sets how many inbound envelope ids are remembered.
	DedupeSize int `koanf:"dedupe_size"`

	// ShutdownTimeoutMS bounds graceful shutdown.
	ShutdownTimeoutMS int `koanf:"shutdown_timeout_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DataDir:             "data",
		PrimaryFile:         "data.json",
		EnhancedFile:        "data-enhanced.json",
		BackupDir:           "backups",
		BackupRetention:     10,
		SaveDebounceMS:      1000,
		HeartbeatIntervalMS: 30_000,
		HeartbeatTimeoutMS:  90_000,
		PingIntervalMS:      25_000,
		ChurnDebounceMS:     2000,
		SendQueueSize:       256,
		DedupeSize:          10_000,
		ShutdownTimeoutMS:   30_000,
	}
}

// Validate checks values that would make the service misbehave.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.DataDir == "":
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	case c.PrimaryFile == "" || c.EnhancedFile == "":
		return fmt.Errorf("%w: snapshot file names must not be empty", ErrInvalidConfig)
	case c.PrimaryFile == c.EnhancedFile:
		return fmt.Errorf("%w: primary_file and enhanced_file must differ", ErrInvalidConfig)
	case c.BackupRetention < 0:
		return fmt.Errorf("%w: backup_retention must not be negative", ErrInvalidConfig)
	case c.SaveDebounceMS < 0 || c.ChurnDebounceMS < 0:
		return fmt.Errorf("%w: debounce windows must not be negative", ErrInvalidConfig)
	case c.HeartbeatIntervalMS <= 0 || c.PingIntervalMS <= 0:
		return fmt.Errorf("%w: heartbeat and ping intervals must be positive", ErrInvalidConfig)
	case c.HeartbeatTimeoutMS < c.HeartbeatIntervalMS:
		return fmt.Errorf("%w: heartbeat_timeout_ms must be at least heartbeat_interval_ms", ErrInvalidConfig)
	case c.SendQueueSize <= 0:
		return fmt.Errorf("%w: send_queue_size must be positive", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	}
	return nil
}

// PrimaryPath returns the full path of the flat snapshot.
func (c *Config) PrimaryPath() string { return filepath.Join(c.DataDir, c.PrimaryFile) }

// EnhancedPath returns the full path of the versioned snapshot.
func (c *Config) EnhancedPath() string { return filepath.Join(c.DataDir, c.EnhancedFile) }

// BackupPath returns the backups directory.
func (c *Config) BackupPath() string {
	if filepath.IsAbs(c.BackupDir) {
		return c.BackupDir
	}
	return filepath.Join(c.DataDir, c.BackupDir)
}

func (c *Config) SaveDebounce() time.Duration      { return ms(c.SaveDebounceMS) }
func (c *Config) HeartbeatInterval() time.Duration { return ms(c.HeartbeatIntervalMS) }
func (c *Config) HeartbeatTimeout() time.Duration  { return ms(c.HeartbeatTimeoutMS) }
func (c *Config) PingInterval() time.Duration      { return ms(c.PingIntervalMS) }
func (c *Config) ChurnDebounce() time.Duration     { return ms(c.ChurnDebounceMS) }
func (c *Config) ShutdownTimeout() time.Duration   { return ms(c.ShutdownTimeoutMS) }

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }
