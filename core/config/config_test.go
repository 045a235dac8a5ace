package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/realtime/core/config"
)

// Each test uses its own config type: values are cached per type for the
// lifetime of the process, so sharing a type across tests would leak state.

func TestLoad(t *testing.T) {
	type serverConfig struct {
		Addr     string        `env:"TEST_SERVER_ADDR" envDefault:":8080"`
		Interval time.Duration `env:"TEST_SERVER_INTERVAL" envDefault:"30s"`
	}

	t.Setenv("TEST_SERVER_ADDR", ":9090")

	var cfg serverConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.Interval, "default applies when unset")
}

func TestLoad_CachesPerType(t *testing.T) {
	type cachedConfig struct {
		Value string `env:"TEST_CACHED_VALUE" envDefault:"first"`
	}

	t.Setenv("TEST_CACHED_VALUE", "first")

	var cfg cachedConfig
	require.NoError(t, config.Load(&cfg))
	require.Equal(t, "first", cfg.Value)

	// The environment changed, but the cached value wins.
	t.Setenv("TEST_CACHED_VALUE", "second")

	var again cachedConfig
	require.NoError(t, config.Load(&again))
	assert.Equal(t, "first", again.Value)
}

func TestLoad_RequiredMissing(t *testing.T) {
	type strictConfig struct {
		Secret string `env:"TEST_REQUIRED_SECRET,required"`
	}

	var cfg strictConfig
	err := config.Load(&cfg)
	require.ErrorIs(t, err, config.ErrConfigLoad)
}

func TestMustLoad(t *testing.T) {
	t.Run("returns parsed config", func(t *testing.T) {
		type happyConfig struct {
			Port int `env:"TEST_MUST_PORT" envDefault:"8080"`
		}

		var cfg happyConfig
		require.NotPanics(t, func() { config.MustLoad(&cfg) })
		assert.Equal(t, 8080, cfg.Port)
	})

	t.Run("panics on failure", func(t *testing.T) {
		type angryConfig struct {
			Token string `env:"TEST_MUST_TOKEN,required"`
		}

		var cfg angryConfig
		require.Panics(t, func() { config.MustLoad(&cfg) })
	})
}
