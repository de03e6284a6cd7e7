package logging

import (
	"context"
	"log/slog"

	"vid2deck/internal/services"
)

// Standard structured logging keys.
const (
	FieldComponent     = "component"
	FieldRunID         = "run_id"
	FieldStage         = "stage"
	FieldCorrelationID = "correlation_id"
	FieldAlert         = "alert"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
	FieldDecisionType  = "decision_type"

	FieldVideoID    = "video_id"
	FieldVideoTitle = "video_title"
	FieldFrames     = "frames"
	FieldAccepted   = "accepted"
	FieldRejected   = "rejected"
	FieldThreshold  = "threshold"
	FieldDistance   = "distance"
	FieldTimestamp  = "timestamp"
	FieldDuration   = "stage_duration"
)

// ContextFields extracts run metadata attached with the services context helpers.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
