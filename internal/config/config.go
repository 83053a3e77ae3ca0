// Package config defines tool configuration and the benchmark document.
//
// Conventions:
// - New() returns a Config holding the defaults; Load layers file and env on top.
// - Path fields are resolved to absolute form once, at load time.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"fmt"
	"runtime"
)

// Config contains process configuration for the kidnapped tool.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// NumDistractorPeers is the number of distractor peers sampled per episode.
	NumDistractorPeers int `koanf:"num_distractor_peers"`

	// Seed seeds the sampler's pseudo-random generator.
	Seed int64 `koanf:"seed"`

	// MaxEpisodes caps the number of episodes built; 0 means no cap.
	MaxEpisodes int `koanf:"max_episodes"`

	// WorkerCount sets the number of matcher workers used by eval.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the in-memory pair job queue used by eval.
	QueueSize int `koanf:"queue_size"`

	// MetricsFile, when set, receives a Prometheus textfile after each command.
	MetricsFile string `koanf:"metrics_file"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		NumDistractorPeers: 4,
		Seed:               0,
		MaxEpisodes:        0,
		WorkerCount:        runtime.NumCPU(),
		QueueSize:          1024,
	}
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.NumDistractorPeers < 0 {
		return fmt.Errorf("%w: num_distractor_peers must not be negative, got %d", ErrInvalidConfig, c.NumDistractorPeers)
	}
	if c.MaxEpisodes < 0 {
		return fmt.Errorf("%w: max_episodes must not be negative, got %d", ErrInvalidConfig, c.MaxEpisodes)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("%w: worker_count must be positive, got %d", ErrInvalidConfig, c.WorkerCount)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	}
	return nil
}
