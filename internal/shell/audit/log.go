package audit

import (
	"context"
	"log/slog"
)

// LogAuditor writes audit events to the process logger.
type LogAuditor struct {
	logger *slog.Logger
}

// NewLogAuditor creates a sink on the default logger.
func NewLogAuditor() *LogAuditor {
	return &LogAuditor{logger: slog.Default().With("component", "audit")}
}

// Record logs the event at info level.
func (a *LogAuditor) Record(_ context.Context, event Event) error {
	a.logger.Info("play",
		"run_id", event.RunID,
		"who", event.Who,
		"action", event.Action,
		"targets", event.Targets,
		"status", event.Status,
		"message", event.Message,
	)
	return nil
}

// Close is a no-op.
func (a *LogAuditor) Close() error {
	return nil
}
