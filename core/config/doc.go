// Package config provides type-safe environment variable loading with
// per-type caching. A .env file is loaded automatically on first use; the
// caarlos0/env library parses variables into struct fields.
//
// Basic usage:
//
//	type RoutingConfig struct {
//		Priority string `env:"BROADCAST_PRIORITY" envDefault:"cross_thread_first"`
//	}
//
//	var cfg RoutingConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
// Each configuration type is loaded only once per process lifetime; later
// Load calls for the same type return the cached value, so configuration is
// stable no matter how many components read it.
package config
