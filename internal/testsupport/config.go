package testsupport

import (
	"path/filepath"
	"testing"

	"localqueue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Scheduler timing is shortened so tests observe ticks quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.SocketPath = filepath.Join(base, "data", "localqueue.sock")
	cfgVal.Storage.Driver = config.StorageDriverSQLite
	cfgVal.Storage.DSN = ""
	cfgVal.Queue.ProcessorInitialDelay = 0
	cfgVal.Queue.ShutdownGraceSeconds = 2

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithQueue mutates the [queue] section.
func WithQueue(fn func(*config.Queue)) ConfigOption {
	return func(b *configBuilder) {
		fn(&b.cfg.Queue)
	}
}

// WithHandlers replaces the declarative handler list.
func WithHandlers(handlers ...config.Handler) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Handlers = append([]config.Handler(nil), handlers...)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
