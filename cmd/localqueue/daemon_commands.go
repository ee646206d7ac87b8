package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"localqueue/internal/daemonctl"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGraceExtra   = 5 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startLogLevel string
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the localqueue daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.OutOrStdout(), ctx, startLogLevel)
		},
	}
	startCmd.Flags().StringVar(&startLogLevel, "log-level", "", "Log level for the launched daemon")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the localqueue daemon, draining running work first",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runStop(cmd.OutOrStdout(), ctx)
			return err
		},
	}

	var restartLogLevel string
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the localqueue daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if _, err := runStop(stdout, ctx); err != nil {
				return err
			}
			return runStart(stdout, ctx, restartLogLevel)
		},
	}
	restartCmd.Flags().StringVar(&restartLogLevel, "log-level", "", "Log level for the launched daemon")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, handler, and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			renderStatusSnapshot(cmd.OutOrStdout(), snapshot)
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func runStart(stdout io.Writer, ctx *commandContext, logLevel string) error {
	exe, err := daemonExecutable()
	if err != nil {
		return err
	}
	result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx, logLevel), startWaitTimeout)
	if err != nil {
		return err
	}
	if result.Launched {
		fmt.Fprintln(stdout, "Daemon not running, launching...")
	}
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(stdout, "Daemon started")
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(stdout, "Daemon already running")
	case daemonctl.StartStateRequested:
		fmt.Fprintln(stdout, result.Message)
	}
	return nil
}

// runStop reports whether a daemon was running.
func runStop(stdout io.Writer, ctx *commandContext) (bool, error) {
	cfg := ctx.configValue()
	grace := stopGraceExtra
	if cfg != nil {
		grace += cfg.ShutdownGrace()
	}
	result, err := daemonctl.StopAndTerminate(ctx.socketPath(), cfg, grace)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(stdout, "Daemon is not running")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if result.ForcedKill && result.PID > 0 {
		fmt.Fprintf(stdout, "Daemon did not drain in time; killed process %d\n", result.PID)
	}
	fmt.Fprintln(stdout, "Daemon stopped")
	return true, nil
}

func renderStatusSnapshot(out io.Writer, snapshot *daemonctl.StatusSnapshot) {
	colorize := shouldColorize(out)
	status := snapshot.Daemon

	var system []string
	if snapshot.Reachable {
		kind := statusOK
		message := fmt.Sprintf("Running (pid %d)", status.PID)
		if !status.Running {
			kind = statusWarn
			message = fmt.Sprintf("Paused (pid %d)", status.PID)
		}
		system = append(system, renderStatusLine("Daemon", kind, message, colorize))
		system = append(system, renderStatusLine("Scheduler", boolKind(status.SchedulerRunning), yesNo(status.SchedulerRunning), colorize))
		system = append(system, renderStatusLine("Free workers", statusInfo, strconv.Itoa(status.AvailableCapacity), colorize))
	} else {
		system = append(system, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	system = append(system, renderStatusLine("Storage", statusInfo, status.Driver+" "+status.DatabaseLocation, colorize))
	for _, check := range snapshot.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		system = append(system, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	if status.LastError != "" {
		system = append(system, renderStatusLine("Last error", statusError, status.LastError, colorize))
	}
	printSection(out, "System Status", colorize, system)
	fmt.Fprintln(out)

	handlers := make([]string, 0, len(snapshot.Handlers))
	for _, h := range snapshot.Handlers {
		handlers = append(handlers, renderStatusLine(h.WorkType, boolKind(h.Ready), h.Kind+": "+h.Detail, colorize))
	}
	if len(handlers) == 0 {
		handlers = append(handlers, renderStatusLine("Handlers", statusWarn, "none configured", colorize))
	}
	printSection(out, "Handlers", colorize, handlers)
	fmt.Fprintln(out)

	printSection(out, "Queue Status", colorize, nil)
	if totalQueued(status.QueueStats) == 0 {
		fmt.Fprintln(out, "Queue is empty")
		return
	}
	fmt.Fprint(out, renderTable([]string{"State", "Count"}, buildQueueStatusRows(status.QueueStats), []columnAlignment{alignLeft, alignRight}))
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusWarn
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, logLevel string) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		SocketPath: ctx.socketOverride(),
		ConfigPath: ctx.configPath(),
		LogLevel:   strings.TrimSpace(logLevel),
	}
}
