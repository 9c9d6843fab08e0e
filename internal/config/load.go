package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables (DATAWIPE_ prefix)
// and an optional datawipe.yaml config file. Environment variables take
// precedence over file values, which take precedence over defaults.
// Returns a populated, validated Config or an error.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("datawipe")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, env and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DATAWIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers a default for every key so AutomaticEnv can
// override each of them individually.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("engine.worker_count", 5)
	v.SetDefault("engine.max_attempts", 3)
	v.SetDefault("engine.base_retry_delay", "1m")
	v.SetDefault("engine.max_retry_delay", "1h")
	v.SetDefault("engine.dispatch_interval", "5s")
	v.SetDefault("engine.heartbeat_interval", "15s")
	v.SetDefault("engine.stale_claim_age", "10m")
	v.SetDefault("engine.confirmation_timeout", "720h") // 30 days
	v.SetDefault("engine.confirmation_poll_interval", "3m")
	v.SetDefault("engine.confidence_threshold", 0.75)
	v.SetDefault("engine.lookback_window", "720h")
	v.SetDefault("engine.undo_window", "24h")
	v.SetDefault("engine.sweep_interval", "10m")

	v.SetDefault("mail.from_address", "")
	v.SetDefault("mail.from_name", "")

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")

	v.SetDefault("vault.master_key", "")

	v.SetDefault("collaborators.account_service_url", "")
	v.SetDefault("collaborators.automation_url", "")
	v.SetDefault("collaborators.mail_relay_url", "")
	v.SetDefault("collaborators.site_catalog_url", "")
	v.SetDefault("collaborators.request_timeout", "5m")
	v.SetDefault("collaborators.catalog_ttl", "1h")
}
