package logging

import (
	"context"
	"errors"
	"log/slog"
)

// ContextProvider returns attributes that change while the process runs,
// such as the session id and the current tick.
type ContextProvider func() []slog.Attr

// Fanout delivers every record to each handler that accepts its level.
type Fanout []slog.Handler

// NewFanout drops nil handlers.
func NewFanout(handlers ...slog.Handler) Fanout {
	f := make(Fanout, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			f = append(f, h)
		}
	}
	return f
}

func (f Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps going after a failing handler and reports all failures.
func (f Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f Fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f Fanout) each(fn func(slog.Handler) slog.Handler) Fanout {
	out := make(Fanout, len(f))
	for i, h := range f {
		out[i] = fn(h)
	}
	return out
}

// stamped adds the provider's attributes to each record at handle time.
type stamped struct {
	slog.Handler
	provider ContextProvider
}

// WithContext wraps inner so that every record carries provider's attributes.
// A nil provider returns inner unchanged.
func WithContext(inner slog.Handler, provider ContextProvider) slog.Handler {
	if provider == nil {
		return inner
	}
	return &stamped{Handler: inner, provider: provider}
}

func (s *stamped) Handle(ctx context.Context, r slog.Record) error {
	if attrs := s.provider(); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return s.Handler.Handle(ctx, r)
}

func (s *stamped) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stamped{Handler: s.Handler.WithAttrs(attrs), provider: s.provider}
}

func (s *stamped) WithGroup(name string) slog.Handler {
	if name == "" {
		return s
	}
	return &stamped{Handler: s.Handler.WithGroup(name), provider: s.provider}
}
