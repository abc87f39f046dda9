package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event represents an incoming command from the host.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	minArgs int
	logged  bool
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// MinArgs rejects events with fewer than n arguments before the handler runs.
func MinArgs(n int) Option {
	return func(c *config) {
		c.minArgs = n
	}
}

// Dispatcher routes events to registered handlers. Handlers run on the
// caller's goroutine; the host calls once per frame.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	calls    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}

	m := otel.Meter("github.com/tramsim/consist/internal/dispatcher")

	var err error

	d.calls, err = m.Int64Counter(
		"hostapi.calls",
		metric.WithDescription("Total host commands dispatched"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating calls counter: %w", err)
	}

	d.failures, err = m.Int64Counter(
		"hostapi.failures",
		metric.WithDescription("Host commands that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"hostapi.duration",
		metric.WithDescription("Handler run time"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(command, h)

	if cfg.minArgs > 0 {
		handler = withMinArgs(command, cfg.minArgs, handler)
	}

	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands lists the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}

func (d *Dispatcher) withMetrics(command string, h HandlerFunc) HandlerFunc {
	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	return func(e Event) (any, error) {
		start := time.Now()
		result, err := h(e)

		ctx := context.Background()
		d.calls.Add(ctx, 1, cmdAttr)
		d.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, cmdAttr)
		if err != nil {
			d.failures.Add(ctx, 1, cmdAttr)
		}
		return result, err
	}
}

func withMinArgs(command string, n int, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		if len(e.Args) < n {
			return nil, fmt.Errorf("%s: expected at least %d args, got %d", command, n, len(e.Args))
		}
		return h(e)
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)

		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		}

		return result, err
	}
}
