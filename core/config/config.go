package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrConfigLoad indicates that parsing environment variables into the target
// struct failed. Inspect with errors.Is.
var ErrConfigLoad = errors.New("failed to load config")

var (
	dotenvOnce sync.Once

	cacheMu sync.RWMutex
	cache   = make(map[reflect.Type]any)
)

// Load parses environment variables into cfg. The first call for a given
// type reads the environment; subsequent calls for the same type return the
// cached value. A .env file in the working directory is loaded once per
// process before the first parse; a missing file is not an error.
func Load[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	typ := reflect.TypeOf(*cfg)

	cacheMu.RLock()
	cached, ok := cache[typ]
	cacheMu.RUnlock()
	if ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigLoad, err)
	}

	cacheMu.Lock()
	// Keep the first successfully loaded value if another goroutine raced us.
	if cached, ok := cache[typ]; ok {
		*cfg = cached.(T)
	} else {
		cache[typ] = *cfg
	}
	cacheMu.Unlock()

	return nil
}

// MustLoad is Load that panics on failure, useful during startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
