package logging

import "log/slog"

// DispatcherLogger satisfies dispatcher.Logger. Records carry
// component=dispatcher.
type DispatcherLogger struct {
	*slog.Logger
}

// NewDispatcherLogger tags logger for the command dispatcher.
func NewDispatcherLogger(logger *slog.Logger) DispatcherLogger {
	return DispatcherLogger{Logger: logger.With("component", "dispatcher")}
}
