// Package config loads application configuration from environment variables.
//
// It wraps `github.com/joho/godotenv` and `github.com/caarlos0/env/v11`:
// .env files are merged into the process environment (existing variables
// win) and the result is parsed into a struct using field tags.
//
//	type ServeConfig struct {
//	    Store string `env:"STORE" envDefault:"memory"`
//	    Table string `env:"TABLE,required"`
//	}
//
//	var cfg ServeConfig
//	if err := config.Load(&cfg, config.WithPrefix("FLOWSTATE_")); err != nil {
//	    log.Fatalf("config: %v", err)
//	}
//
// Infrastructure packages (httpserver, redis, pg, mongo, file) each expose a
// Config struct meant to be loaded this way.
//
// Errors can be matched with errors.Is: ErrParsingConfig, ErrLoadingEnvFile,
// ErrNilPointer.
package config
