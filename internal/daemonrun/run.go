package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"localqueue/internal/api"
	"localqueue/internal/config"
	"localqueue/internal/daemon"
	"localqueue/internal/dispatch"
	"localqueue/internal/handlers"
	"localqueue/internal/ipc"
	"localqueue/internal/logging"
	"localqueue/internal/logs"
	"localqueue/internal/metrics"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Register adds programmatic handlers on top of the configured ones.
	Register func(*dispatch.Registry) error
}

// Run starts the localqueue daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("localqueue-%s.log", runID))
	logger, err := logging.NewFromConfig(cfg, logPath, opts.LogLevel, opts.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update localqueue.log link: %v\n", err)
	}
	logHandlerSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "localqueue.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	recorder, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	q, err := api.Open(cfg, recorder, logger)
	if err != nil {
		logger.Error("open queue", logging.Error(err))
		return err
	}

	registry := dispatch.NewRegistry()
	if err := handlers.Register(registry, cfg.Handlers, logger); err != nil {
		q.Close()
		return fmt.Errorf("register handlers: %w", err)
	}
	if opts.Register != nil {
		if err := opts.Register(registry); err != nil {
			q.Close()
			return fmt.Errorf("register handlers: %w", err)
		}
	}

	d, err := daemon.New(cfg, q, registry, recorder, logger)
	if err != nil {
		q.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	// Start takes the instance lock; the socket must not be replaced before then.
	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("localqueue daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := logs.CurrentLogPath(logDir)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logHandlerSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("storage_driver", cfg.Storage.Driver),
		logging.String("storage", cfg.StorageLocation()),
		logging.Int("executor_min_threads", cfg.Queue.ExecutorMinThreads),
		logging.Int("executor_max_threads", cfg.Queue.ExecutorMaxThreads),
		logging.Bool("exception_on_enqueue_fail", cfg.Queue.ExceptionOnEnqueueFail),
		logging.Bool("api_enabled", strings.TrimSpace(cfg.API.Bind) != ""),
	)
	for _, h := range cfg.Handlers {
		attrs := []logging.Attr{
			logging.String(logging.FieldEventType, "handler_snapshot"),
			logging.String(logging.FieldWorkType, h.WorkType),
			logging.String("kind", h.Kind),
		}
		if h.Kind == config.HandlerKindCommand && len(h.Command) > 0 {
			attrs = append(attrs,
				logging.String("command", h.Command[0]),
				logging.Bool("command_available", binaryAvailable(h.Command[0])),
			)
		}
		logger.Info("handler configured", logging.Args(attrs...)...)
	}
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
