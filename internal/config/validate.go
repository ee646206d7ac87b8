package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateHandlers(); err != nil {
		return err
	}
	if c.API.Token != "" && c.API.Bind == "" {
		return errors.New("api.token is set but api.bind is empty")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageDriverSQLite:
		if strings.TrimSpace(c.Paths.DataDir) == "" {
			return errors.New("paths.data_dir must be set when storage.driver is sqlite")
		}
	case StorageDriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.driver is postgres (or set %s)", postgresDSNEnv)
		}
	default:
		return fmt.Errorf("storage.driver: unsupported value %q (expected sqlite or postgres)", c.Storage.Driver)
	}
	return nil
}

func (c *Config) validateQueue() error {
	q := c.Queue
	if q.ExecutorMinThreads < 0 {
		return errors.New("queue.executor_min_threads must be zero or positive")
	}
	if q.ExecutorMaxThreads <= 0 {
		return errors.New("queue.executor_max_threads must be positive")
	}
	if q.ExecutorMinThreads > q.ExecutorMaxThreads {
		return fmt.Errorf("queue.executor_min_threads (%d) must not exceed queue.executor_max_threads (%d)", q.ExecutorMinThreads, q.ExecutorMaxThreads)
	}
	if err := ensurePositiveMap(map[string]int{
		"queue.executor_idle_seconds":  q.ExecutorIdleSeconds,
		"queue.processor_interval":     q.ProcessorInterval,
		"queue.shutdown_grace_seconds": q.ShutdownGraceSeconds,
		"queue.fingerprint_cache_size": q.FingerprintCacheSize,
	}); err != nil {
		return err
	}
	if q.ProcessorInitialDelay < 0 {
		return errors.New("queue.processor_initial_delay must be zero or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateHandlers() error {
	seen := make(map[string]struct{}, len(c.Handlers))
	for i, h := range c.Handlers {
		if h.WorkType == "" {
			return fmt.Errorf("handlers[%d].work_type must be set", i)
		}
		if _, ok := seen[h.WorkType]; ok {
			return fmt.Errorf("handlers[%d]: duplicate work_type %q", i, h.WorkType)
		}
		seen[h.WorkType] = struct{}{}
		switch h.Kind {
		case HandlerKindLog:
		case HandlerKindCommand:
			if len(h.Command) == 0 || strings.TrimSpace(h.Command[0]) == "" {
				return fmt.Errorf("handlers[%d].command must name an executable for kind %q", i, h.Kind)
			}
		default:
			return fmt.Errorf("handlers[%d].kind: unsupported value %q", i, h.Kind)
		}
		if h.TimeoutSeconds < 0 {
			return fmt.Errorf("handlers[%d].timeout_seconds must be zero or positive", i)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
