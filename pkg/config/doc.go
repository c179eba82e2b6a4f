// Package config loads typed configuration from environment variables using
// github.com/caarlos0/env/v11, after reading an optional .env file with
// github.com/joho/godotenv.
//
// Parse returns a fresh value each call and supports a variable prefix.
// Load caches one parsed value per type for the lifetime of the process,
// and MustLoad panics when loading fails. Structs implementing Validator are
// validated after parsing, and a validation failure wraps ErrInvalidConfig.
//
//	type Config struct {
//		HookTimeout time.Duration `env:"FSM_HOOK_TIMEOUT" envDefault:"10s"`
//	}
//
//	var cfg Config
//	config.MustLoad(&cfg)
package config
