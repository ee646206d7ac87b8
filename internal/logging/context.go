package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldEventType classifies a log line for filtering (for example missing_handler).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step an operator should take.
	FieldErrorHint = "error_hint"
	// FieldWorkType is the standardized key for a work item's type.
	FieldWorkType = "work_type"
	// FieldFingerprint is the standardized key for a work item's fingerprint.
	FieldFingerprint = "fingerprint"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

type contextKey int

const (
	workTypeKey contextKey = iota
	fingerprintKey
	correlationIDKey
)

// WithWorkItem tags ctx with the work item being processed.
func WithWorkItem(ctx context.Context, workType string, fingerprint int64) context.Context {
	ctx = context.WithValue(ctx, workTypeKey, workType)
	return context.WithValue(ctx, fingerprintKey, fingerprint)
}

// WithCorrelationID tags ctx with a request or task correlation identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey, id)
}

// CorrelationID returns the correlation identifier stored in ctx, if any.
func CorrelationID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if workType, ok := ctx.Value(workTypeKey).(string); ok && workType != "" {
		fields = append(fields, slog.String(FieldWorkType, workType))
	}
	if fp, ok := ctx.Value(fingerprintKey).(int64); ok {
		fields = append(fields, slog.Int64(FieldFingerprint, fp))
	}
	if id, ok := CorrelationID(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
