package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"localqueue/internal/logging"
	"localqueue/internal/queue"
)

const stderrTailBytes = 512

// Environment variables set for command handlers.
const (
	EnvWorkType    = "LOCALQUEUE_WORK_TYPE"
	EnvFingerprint = "LOCALQUEUE_FINGERPRINT"
)

// CommandHandler runs an external program per item with the payload on stdin.
type CommandHandler struct {
	argv    []string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommandHandler validates argv and returns a handler. A zero timeout
// means the command runs until it exits or the dispatcher cancels it.
func NewCommandHandler(argv []string, timeout time.Duration, logger *slog.Logger) (*CommandHandler, error) {
	if len(argv) == 0 || strings.TrimSpace(argv[0]) == "" {
		return nil, errors.New("command handler: executable is required")
	}
	return &CommandHandler{
		argv:    append([]string(nil), argv...),
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "command-handler"),
	}, nil
}

// Handle runs the command. A non-zero exit is returned as an error carrying
// the tail of stderr.
func (h *CommandHandler) Handle(ctx context.Context, item queue.WorkItem) error {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, h.argv[0], h.argv[1:]...) //nolint:gosec
	cmd.Stdin = strings.NewReader(item.Payload)
	cmd.Env = append(os.Environ(),
		EnvWorkType+"="+item.WorkType,
		EnvFingerprint+"="+strconv.FormatInt(item.Fingerprint, 10),
	)
	var stdout countingWriter
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	logger := logging.WithContext(ctx, h.logger)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", h.argv[0], ctx.Err())
		}
		return fmt.Errorf("%s: %w: %s", h.argv[0], err, tail(stderr.Bytes(), stderrTailBytes))
	}
	logger.Debug("command handler finished",
		logging.String("command", h.argv[0]),
		logging.Duration("duration", time.Since(start)),
		logging.Int64("stdout_bytes", stdout.n),
	)
	return nil
}

// countingWriter discards command output and records how much there was.
type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// tail returns at most n trailing bytes of b, starting on a rune boundary.
func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
		for len(b) > 0 && !utf8.RuneStart(b[0]) {
			b = b[1:]
		}
	}
	return string(b)
}
