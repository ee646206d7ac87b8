package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket_path"`
}

// Storage selects the durable backend for work items.
type Storage struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `toml:"driver"`
	// DSN is required for postgres. Falls back to LOCALQUEUE_POSTGRES_DSN.
	DSN string `toml:"dsn"`
}

// Queue contains the scheduler and dispatcher tuning knobs.
type Queue struct {
	ExceptionOnEnqueueFail bool `toml:"exception_on_enqueue_fail"`
	ExecutorMinThreads     int  `toml:"executor_min_threads"`
	ExecutorMaxThreads     int  `toml:"executor_max_threads"`
	ExecutorIdleSeconds    int  `toml:"executor_idle_seconds"`
	ProcessorInitialDelay  int  `toml:"processor_initial_delay"`
	ProcessorInterval      int  `toml:"processor_interval"`
	ShutdownGraceSeconds   int  `toml:"shutdown_grace_seconds"`
	FingerprintCacheSize   int  `toml:"fingerprint_cache_size"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// API configures the optional read-only HTTP status API.
type API struct {
	// Bind is a host:port to listen on. Empty disables the API.
	Bind string `toml:"bind"`
	// Token, when set, is required as an "Authorization: Bearer" header.
	Token string `toml:"token"`
}

// Handler declares a built-in handler bound to a work type.
type Handler struct {
	WorkType       string   `toml:"work_type"`
	Kind           string   `toml:"kind"`
	Command        []string `toml:"command"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Config encapsulates all configuration values for localqueue.
//
// Configuration sections by subsystem:
//   - Paths: data, log, and socket locations
//   - Storage: sqlite or postgres backend selection
//   - Queue: worker pool sizing, scheduler timing, enqueue failure policy
//   - Logging: log format and level
//   - API: optional HTTP status endpoint
//   - Handlers: declarative work type to handler bindings
type Config struct {
	Paths    Paths     `toml:"paths"`
	Storage  Storage   `toml:"storage"`
	Queue    Queue     `toml:"queue"`
	Logging  Logging   `toml:"logging"`
	API      API       `toml:"api"`
	Handlers []Handler `toml:"handlers"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/localqueue/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("localqueue.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, filepath.Dir(c.Paths.SocketPath)} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath is the SQLite database location used when storage.driver is sqlite.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockPath is the flock file guarding a single daemon per data directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "localqueue.lock")
}

// StorageLocation describes where work items live, without leaking credentials.
func (c *Config) StorageLocation() string {
	if c.Storage.Driver == StorageDriverPostgres {
		return "postgres"
	}
	return c.QueueDBPath()
}

// ExecutorIdleTimeout returns the worker idle retirement timeout.
func (c *Config) ExecutorIdleTimeout() time.Duration {
	return time.Duration(c.Queue.ExecutorIdleSeconds) * time.Second
}

// ProcessorInitialDelay returns the delay before the first scheduler tick.
func (c *Config) ProcessorInitialDelay() time.Duration {
	return time.Duration(c.Queue.ProcessorInitialDelay) * time.Second
}

// ProcessorInterval returns the fixed interval between scheduler ticks.
func (c *Config) ProcessorInterval() time.Duration {
	return time.Duration(c.Queue.ProcessorInterval) * time.Second
}

// ShutdownGrace returns how long Stop waits before forcing termination.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Queue.ShutdownGraceSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
