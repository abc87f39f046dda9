package logging

import "log/slog"

// DispatcherLogger satisfies dispatcher.Logger with a slog.Logger tagged
// component=dispatcher.
type DispatcherLogger struct {
	*slog.Logger
}

func NewDispatcherLogger(logger *slog.Logger) DispatcherLogger {
	return DispatcherLogger{Logger: logger.With("component", "dispatcher")}
}
