package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"localqueue/internal/api"
	"localqueue/internal/config"
	"localqueue/internal/ipc"
	"localqueue/internal/logging"
	"localqueue/internal/preflight"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached "localqueue daemon" process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon process when its socket is unreachable,
// or resumes processing in a daemon that was stopped over IPC.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := Launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = WaitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	statusResp, statusErr := client.Status()
	if statusErr == nil && statusResp != nil && statusResp.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	message := strings.TrimSpace(resp.Message)
	if resp.Started {
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}, nil
	}
	if strings.EqualFold(message, "daemon already running") {
		return StartResult{State: StartStateAlreadyRunning, Message: message}, nil
	}
	if message == "" {
		message = "Start request sent"
	}
	return StartResult{State: StartStateRequested, Launched: launched, Message: message}, nil
}

// WaitForShutdown waits for the daemon socket to stop accepting connections.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil {
			if isDaemonUnavailable(err) {
				return nil
			}
		} else {
			_ = client.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// ProcessInfo returns whether daemon IPC is reachable and the daemon PID when available.
func ProcessInfo(socketPath string) (bool, int, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	defer client.Close()
	status, err := client.Status()
	if err != nil {
		return true, 0, err
	}
	return true, status.PID, nil
}

// PIDPath is the pid file written by a running daemon.
func PIDPath(cfg *config.Config) string {
	if cfg == nil {
		return ""
	}
	return filepath.Join(cfg.Paths.DataDir, "localqueue.pid")
}

// ReadPID returns the pid recorded in path, or fallback when the file is
// missing or unreadable.
func ReadPID(path string, fallback int) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func signalProcess(pid int, sig syscall.Signal) error {
	if pid <= 0 {
		return fmt.Errorf("unable to determine daemon pid")
	}
	if pid == os.Getpid() {
		return fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Signal(sig); err != nil {
		return fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	return nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// StopAndTerminate sends SIGTERM to the daemon, which drains running work
// within its shutdown grace, and falls back to SIGKILL once gracePeriod
// elapses. Items abandoned by SIGKILL are recovered on the next start.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	alive, pid, err := ProcessInfo(socketPath)
	if err != nil && !alive {
		return StopResult{}, err
	}
	if !alive {
		return StopResult{}, ErrDaemonNotRunning
	}
	pid = ReadPID(PIDPath(cfg), pid)
	result := StopResult{PID: pid}

	if err := signalProcess(pid, syscall.SIGTERM); err != nil {
		return result, err
	}
	if err := WaitForShutdown(socketPath, gracePeriod); err == nil {
		return result, nil
	}

	if err := signalProcess(pid, syscall.SIGKILL); err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	_ = os.Remove(PIDPath(cfg))
	result.ForcedKill = true
	return result, nil
}

// StatusSnapshot combines daemon status with local preflight checks,
// including a storage open and integrity check.
type StatusSnapshot struct {
	Reachable bool
	Daemon    api.DaemonStatus
	Checks    []preflight.Result
	Handlers  []HandlerCheck
}

// HandlerCheck reports whether a configured handler can run.
type HandlerCheck struct {
	WorkType string
	Kind     string
	Detail   string
	Ready    bool
}

// BuildStatusSnapshot asks the daemon for its status. When the daemon is not
// reachable, queue statistics are read from the store directly.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snapshot.Reachable = true
			snapshot.Daemon = *resp
		}
	}

	if !snapshot.Reachable {
		snapshot.Daemon = api.DaemonStatus{
			Driver:           cfg.Storage.Driver,
			DatabaseLocation: cfg.StorageLocation(),
			LockFilePath:     cfg.LockPath(),
			SocketPath:       socketPath,
		}
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		q, openErr := api.Open(cfg, nil, logging.NewNop())
		if openErr != nil {
			snapshot.Daemon.LastError = openErr.Error()
		} else {
			stats, statsErr := api.NewQueueService(q).Stats(queryCtx)
			_ = q.Close()
			if statsErr != nil {
				snapshot.Daemon.LastError = statsErr.Error()
			} else {
				snapshot.Daemon.QueueStats = stats
			}
		}
	}

	snapshot.Checks = preflight.RunAll(ctx, cfg)
	snapshot.Handlers = BuildHandlerChecks(cfg)
	return snapshot, nil
}

// BuildHandlerChecks reports each configured handler and, for command
// handlers, whether the executable resolves on PATH.
func BuildHandlerChecks(cfg *config.Config) []HandlerCheck {
	if cfg == nil {
		return nil
	}
	checks := make([]HandlerCheck, 0, len(cfg.Handlers))
	for _, h := range cfg.Handlers {
		check := HandlerCheck{WorkType: h.WorkType, Kind: h.Kind, Ready: true, Detail: "built-in"}
		if h.Kind == config.HandlerKindCommand && len(h.Command) > 0 {
			path, err := exec.LookPath(h.Command[0])
			if err != nil {
				check.Ready = false
				check.Detail = fmt.Sprintf("%s (not found)", h.Command[0])
			} else {
				check.Detail = path
			}
		}
		checks = append(checks, check)
	}
	return checks
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
