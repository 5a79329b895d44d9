// Package config defines the application configuration structure and loads
// it from environment variables and optional config files using viper.
// All engine tunables (detection thresholds, learning parameters, timeouts)
// live here so they can be changed per deployment without code changes.
package config
