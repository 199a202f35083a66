package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowstate/pkg/config"
)

type serveConfig struct {
	Store    string        `env:"STORE" envDefault:"memory"`
	Capacity int           `env:"CAPACITY" envDefault:"1024"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
	Tags     []string      `env:"TAGS" envSeparator:","`
}

type requiredConfig struct {
	Table string `env:"TABLE,required"`
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		var cfg serveConfig
		require.NoError(t, config.Load(&cfg, config.WithEnvironment(map[string]string{})))
		assert.Equal(t, "memory", cfg.Store)
		assert.Equal(t, 1024, cfg.Capacity)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.Empty(t, cfg.Tags)
	})

	t.Run("prefix", func(t *testing.T) {
		t.Parallel()
		var cfg serveConfig
		err := config.Load(&cfg,
			config.WithPrefix("FLOWSTATE_"),
			config.WithEnvironment(map[string]string{
				"FLOWSTATE_STORE":   "postgres",
				"FLOWSTATE_TIMEOUT": "1m",
				"STORE":             "ignored",
			}),
		)
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Store)
		assert.Equal(t, time.Minute, cfg.Timeout)
	})

	t.Run("required missing", func(t *testing.T) {
		t.Parallel()
		var cfg requiredConfig
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("invalid value", func(t *testing.T) {
		t.Parallel()
		var cfg serveConfig
		err := config.Load(&cfg, config.WithEnvironment(map[string]string{"CAPACITY": "many"}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("nil pointer", func(t *testing.T) {
		t.Parallel()
		var cfg *serveConfig
		assert.ErrorIs(t, config.Load(cfg), config.ErrNilPointer)
	})

	t.Run("missing env file", func(t *testing.T) {
		t.Parallel()
		var cfg serveConfig
		err := config.Load(&cfg, config.WithEnvFiles("testdata/missing.env"))
		assert.ErrorIs(t, err, config.ErrLoadingEnvFile)
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Setenv("FLOWSTATE_TEST_CAPACITY", "8")

	var cfg serveConfig
	err := config.Load(&cfg,
		config.WithPrefix("FLOWSTATE_TEST_"),
		config.WithEnvFiles("testdata/.env.test"),
	)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store)
	assert.Equal(t, 8, cfg.Capacity, "process environment wins over the file")
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
}

func TestMustLoad(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg, config.WithEnvironment(map[string]string{}))
	})
	assert.NotPanics(t, func() {
		var cfg requiredConfig
		config.MustLoad(&cfg, config.WithEnvironment(map[string]string{"TABLE": "t.yaml"}))
	})
}
