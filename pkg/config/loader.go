package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Option adjusts how Load reads the environment.
type Option func(*options)

type options struct {
	prefix  string
	files   []string
	environ map[string]string
	skipDot bool
}

// WithPrefix prepends prefix to every variable name, so `env:"ADDR"` reads
// PREFIX_ADDR when prefix is "PREFIX_".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithEnvFiles loads the given .env files before parsing. Unlike the default
// .env file, these must exist. Variables already set in the process win.
func WithEnvFiles(paths ...string) Option {
	return func(o *options) { o.files = append(o.files, paths...) }
}

// WithEnvironment parses from the given map instead of the process
// environment. The default .env file is not read.
func WithEnvironment(vars map[string]string) Option {
	return func(o *options) {
		o.environ = vars
		o.skipDot = true
	}
}

// Load populates v from environment variables based on its `env` and
// `envDefault` struct tags.
//
// The first call reads ./.env if present. Missing default file is not an
// error.
//
//	type HistoryConfig struct {
//		Store string `env:"STORE" envDefault:"memory"`
//		Table string `env:"TABLE,required"`
//	}
//
//	var cfg HistoryConfig
//	err := config.Load(&cfg, config.WithPrefix("FLOWSTATE_"))
func Load[T any](v *T, opts ...Option) error {
	if v == nil {
		return ErrNilPointer
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if !o.skipDot {
		defaultEnvLoaded.Do(func() {
			_ = godotenv.Load()
		})
	}
	if len(o.files) > 0 {
		if err := godotenv.Load(o.files...); err != nil {
			return errors.Join(ErrLoadingEnvFile, err)
		}
	}

	if err := env.ParseWithOptions(v, env.Options{
		Prefix:      o.prefix,
		Environment: o.environ,
	}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics if configuration loading fails.
func MustLoad[T any](v *T, opts ...Option) {
	if err := Load(v, opts...); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
