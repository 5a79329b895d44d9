package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables (prefixed ENGINE_, with dots replaced by
// underscores, e.g. ENGINE_DATABASE_URL) take precedence over file values,
// which take precedence over defaults.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory: config.yaml.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Running without a config file is the normal deployment mode.
	}

	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers the default value for every setting so a deployment
// only has to provide the database URL to get a working engine.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	// Keys without a meaningful default still need to be registered so
	// AutomaticEnv can bind them during Unmarshal.
	v.SetDefault("database.url", "")
	v.SetDefault("llm.gemini_api_key", "")

	v.SetDefault("engine.evaluation_window_days", 14)
	v.SetDefault("engine.overload_threshold_ratio", 1.15)
	v.SetDefault("engine.max_dependency_depth", 10)
	v.SetDefault("engine.min_samples", 10)
	v.SetDefault("engine.learning_rate", 0.1)
	v.SetDefault("engine.max_adjustment", 0.3)
	v.SetDefault("engine.enrichment_timeout", 5*time.Second)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 100)
	v.SetDefault("task.stuck_task_age", 30*time.Minute)
}

// validate runs struct-tag validation over the assembled config and wraps
// the validator error with enough context for operators to find the bad key.
func validate(cfg *Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}
