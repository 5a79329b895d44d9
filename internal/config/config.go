package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine"   validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Task     TaskConfig     `mapstructure:"task"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// EngineConfig contains the detection and ranking tunables. The defaults
// mirror the documented behavior of the engine; deployments override them
// rather than patching constants.
type EngineConfig struct {
	// EvaluationWindowDays is the sliding window the overload detector sums
	// committed effort over.
	EvaluationWindowDays int `mapstructure:"evaluation_window_days" validate:"required,gt=0"`

	// OverloadThresholdRatio is the capacity ratio above which an assignee
	// is considered overloaded.
	OverloadThresholdRatio float64 `mapstructure:"overload_threshold_ratio" validate:"required,gt=1"`

	// MaxDependencyDepth bounds the dependency graph walk so cyclic data
	// cannot make a scan run unbounded.
	MaxDependencyDepth int `mapstructure:"max_dependency_depth" validate:"required,gt=0"`

	// MinSamples is the scoped learning-entry sample size at which the
	// ranker stops blending in the global entry.
	MinSamples int `mapstructure:"min_samples" validate:"required,gt=0"`

	// LearningRate is the EMA step size for confidence-adjustment updates.
	LearningRate float64 `mapstructure:"learning_rate" validate:"required,gt=0,lte=1"`

	// MaxAdjustment bounds the learned confidence adjustment in both
	// directions.
	MaxAdjustment float64 `mapstructure:"max_adjustment" validate:"required,gt=0,lte=1"`

	// EnrichmentTimeout bounds the optional rationale-enrichment call; on
	// expiry the engine falls back to templated rationale text.
	EnrichmentTimeout time.Duration `mapstructure:"enrichment_timeout" validate:"required"`
}

// LLMConfig contains settings for the optional rationale-enrichment
// collaborator. When APIKey is empty the engine runs with templated
// rationale text only.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// TaskConfig contains settings for the background scan runner.
type TaskConfig struct {
	WorkerCount  int           `mapstructure:"worker_count"   validate:"required,gt=0"`
	QueueSize    int           `mapstructure:"queue_size"     validate:"required,gt=0"`
	StuckTaskAge time.Duration `mapstructure:"stuck_task_age" validate:"required"`
}
