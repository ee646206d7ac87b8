package config

const (
	defaultDataDir                = "~/.local/share/localqueue"
	defaultLogDir                 = "~/.local/share/localqueue/logs"
	defaultSocketName             = "localqueue.sock"
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultExecutorMinThreads     = 2
	defaultExecutorMaxThreads     = 8
	defaultExecutorIdleSeconds    = 60
	defaultProcessorInitialDelay  = 1
	defaultProcessorInterval      = 1
	defaultShutdownGraceSeconds   = 15
	defaultFingerprintCacheSize   = 10
	defaultExceptionOnEnqueueFail = false
	postgresDSNEnv                = "LOCALQUEUE_POSTGRES_DSN"
)

// Storage drivers.
const (
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

// Built-in handler kinds.
const (
	HandlerKindLog     = "log"
	HandlerKindCommand = "command"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Storage: Storage{
			Driver: StorageDriverSQLite,
		},
		Queue: Queue{
			ExceptionOnEnqueueFail: defaultExceptionOnEnqueueFail,
			ExecutorMinThreads:     defaultExecutorMinThreads,
			ExecutorMaxThreads:     defaultExecutorMaxThreads,
			ExecutorIdleSeconds:    defaultExecutorIdleSeconds,
			ProcessorInitialDelay:  defaultProcessorInitialDelay,
			ProcessorInterval:      defaultProcessorInterval,
			ShutdownGraceSeconds:   defaultShutdownGraceSeconds,
			FingerprintCacheSize:   defaultFingerprintCacheSize,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
