// Package config loads, normalizes, and validates localqueue configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// LOCALQUEUE_POSTGRES_DSN. The Config type centralizes the worker pool,
// scheduler, storage, and handler settings the daemon and CLI need.
//
// Every queue option has a default, so callers embedding the queue can use
// Default() without a configuration file.
package config
