// Package config loads the service configuration from defaults, an
// optional YAML file, OFFLOAD_* environment variables, and runtime
// overrides, in increasing order of precedence.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Kaggle       KaggleConfig       `mapstructure:"kaggle"`
	Mirror       MirrorConfig       `mapstructure:"mirror"`

	// JobsRoot is the directory holding per-job working directories.
	JobsRoot string `mapstructure:"jobs_root"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OrchestratorConfig holds the job lifecycle tunables.
type OrchestratorConfig struct {
	GraceWait      time.Duration `mapstructure:"grace_wait"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	PollBudget     time.Duration `mapstructure:"poll_budget"`
	OutputPattern  string        `mapstructure:"output_pattern"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	EnableGPU      bool          `mapstructure:"enable_gpu"`
	EnableInternet bool          `mapstructure:"enable_internet"`
}

// KaggleConfig holds remote platform client settings. Credentials are
// resolved separately (kaggle.json or KAGGLE_USERNAME/KAGGLE_KEY).
type KaggleConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// MirrorConfig holds optional S3 archival settings for completed outputs.
type MirrorConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	Region         string `mapstructure:"region"`
	Endpoint       string `mapstructure:"endpoint"`
	Profile        string `mapstructure:"profile"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
}
