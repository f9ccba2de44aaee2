package config

import (
	"fmt"
	"reflect"
	"sync"

	env "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	mu    sync.Mutex
	cache = make(map[reflect.Type]any)
)

// Load parses environment variables into the struct cfg points to. Each
// configuration type is loaded once per process; later calls for the same
// type return the cached value. A .env file in the working directory is
// loaded once, before the first parse, and never overrides variables already
// set.
func Load(cfg any) error {
	dotenvOnce.Do(func() {
		// Missing .env is the normal case outside local development.
		_ = godotenv.Load()
	})

	v := reflect.ValueOf(cfg)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("config: target must be a non-nil struct pointer, got %T", cfg)
	}
	t := v.Elem().Type()
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("config: target must point to a struct, got %T", cfg)
	}

	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[t]; ok {
		v.Elem().Set(reflect.ValueOf(cached))
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: failed to load %s: %w", t, err)
	}

	cache[t] = v.Elem().Interface()
	return nil
}

// MustLoad is Load panicking on failure, for use at startup.
func MustLoad(cfg any) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
