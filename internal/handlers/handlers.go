package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"localqueue/internal/config"
	"localqueue/internal/dispatch"
	"localqueue/internal/logging"
	"localqueue/internal/queue"
)

// Register binds every declared handler in specs to reg.
func Register(reg *dispatch.Registry, specs []config.Handler, logger *slog.Logger) error {
	for _, spec := range specs {
		h, err := Build(spec, logger)
		if err != nil {
			return err
		}
		if err := reg.Register(spec.WorkType, h); err != nil {
			return err
		}
	}
	return nil
}

// Build constructs the handler for one [[handlers]] entry.
func Build(spec config.Handler, logger *slog.Logger) (dispatch.Handler, error) {
	switch spec.Kind {
	case config.HandlerKindLog, "":
		return NewLogHandler(logger), nil
	case config.HandlerKindCommand:
		timeout := time.Duration(spec.TimeoutSeconds) * time.Second
		return NewCommandHandler(spec.Command, timeout, logger)
	default:
		return nil, fmt.Errorf("handler %q: unsupported kind %q", spec.WorkType, spec.Kind)
	}
}

// NewLogHandler returns a handler that logs each item at info level.
func NewLogHandler(logger *slog.Logger) dispatch.Handler {
	logger = logging.NewComponentLogger(logger, "log-handler")
	return dispatch.HandlerFunc(func(ctx context.Context, item queue.WorkItem) error {
		logging.WithContext(ctx, logger).Info("work item received",
			logging.String("payload", item.Payload),
			logging.String("created_at", item.Created().UTC().Format(time.RFC3339Nano)),
		)
		return nil
	})
}
