package config

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// Load builds the configuration from defaults, an optional offload.yaml
// (searched in the working directory and ~/.offload), OFFLOAD_* environment
// variables, and finally any runtime overrides. Later sources win.
//
// The loaded config is cached; GetConfig returns the most recent load.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("offload")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.offload")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("OFFLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v)

	// Runtime overrides outrank environment variables, so they go in as
	// explicit sets rather than a merged config layer.
	for _, o := range overrides {
		applyOverrides(v, "", o)
	}

	var cfg Config
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()

	return &cfg, nil
}

// GetConfig returns the most recently loaded config, or nil before the
// first Load.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func applyOverrides(v *viper.Viper, prefix string, values map[string]any) {
	for key, value := range values {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			applyOverrides(v, full, nested)
			continue
		}
		v.Set(full, value)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("orchestrator.grace_wait", 15*time.Second)
	v.SetDefault("orchestrator.poll_interval", 30*time.Second)
	v.SetDefault("orchestrator.poll_budget", 60*time.Minute)
	v.SetDefault("orchestrator.output_pattern", "output*")
	v.SetDefault("orchestrator.rate_limit", 0.0)
	v.SetDefault("orchestrator.enable_gpu", true)
	v.SetDefault("orchestrator.enable_internet", true)

	v.SetDefault("kaggle.base_url", "https://www.kaggle.com/api/v1")
	v.SetDefault("kaggle.http_timeout", 5*time.Minute)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.bucket", "")
	v.SetDefault("mirror.prefix", "")
	v.SetDefault("mirror.region", "")
	v.SetDefault("mirror.endpoint", "")
	v.SetDefault("mirror.profile", "")
	v.SetDefault("mirror.force_path_style", false)

	v.SetDefault("jobs_root", "./jobs")
}

// bindEnvAliases registers flat environment names for the settings most
// commonly set in deployment environments, alongside the canonical
// OFFLOAD_SECTION_KEY forms produced by AutomaticEnv.
func bindEnvAliases(v *viper.Viper) {
	_ = v.BindEnv("server.host", "OFFLOAD_SERVER_HOST", "OFFLOAD_HOST")
	_ = v.BindEnv("server.port", "OFFLOAD_SERVER_PORT", "OFFLOAD_PORT")
	_ = v.BindEnv("logging.level", "OFFLOAD_LOGGING_LEVEL", "OFFLOAD_LOG_LEVEL")
	_ = v.BindEnv("logging.format", "OFFLOAD_LOGGING_FORMAT", "OFFLOAD_LOG_FORMAT")
	_ = v.BindEnv("jobs_root", "OFFLOAD_JOBS_ROOT")
}
