package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope used for OTel log records.
const ServiceName = "consist"

// swapped by tests
var (
	osStdout = os.Stdout
	osPipe   = os.Pipe
)

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	context ContextProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}
}

// SetContextProvider attaches dynamic attributes (session, tick) to every
// record logged after the next Setup.
func (m *SlogManager) SetContextProvider(p ContextProvider) {
	m.context = p
}

// Setup initializes the logging system. Records go to file when given,
// otherwise to stdout. A non-nil provider adds an OTel handler; extra
// handlers such as Graylog are appended as-is.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, extra ...slog.Handler) {
	lvl := parseLevel(level)
	m.logProvider = provider
	opts := handlerOptions(lvl)

	var handlers []slog.Handler
	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, opts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, opts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}
	handlers = append(handlers, extra...)

	m.logger = slog.New(WithContext(NewFanout(handlers...), m.context))
	m.logger.Info("Logging initialized", "level", level)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// WriteLog writes a host-originated log line at the given level.
func (m *SlogManager) WriteLog(functionName, data, level string) {
	if m.logger == nil {
		return
	}

	switch parseLevel(level) {
	case slog.LevelDebug:
		m.logger.Debug(data, "function", functionName)
	case slog.LevelWarn:
		m.logger.Warn(data, "function", functionName)
	case slog.LevelError:
		m.logger.Error(data, "function", functionName)
	default:
		m.logger.Info(data, "function", functionName)
	}
}
