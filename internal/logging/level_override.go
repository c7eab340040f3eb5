package logging

import (
	"context"
	"log/slog"
	"strings"
)

// levelOverrideHandler enforces a per-logger minimum level while delegating
// output to the wrapped handler, which must be configured with the most
// verbose level needed by any component. When a component attribute is
// attached through WithAttrs the matching override (if any) replaces the level.
type levelOverrideHandler struct {
	next      slog.Handler
	level     slog.Level
	overrides map[string]slog.Level
}

func (h *levelOverrideHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if level < h.level {
		return false
	}
	return h.next.Enabled(ctx, level)
}

func (h *levelOverrideHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelOverrideHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	level := h.level
	for _, attr := range attrs {
		if attr.Key != FieldComponent {
			continue
		}
		if lvl, ok := h.overrides[strings.ToLower(attr.Value.String())]; ok {
			level = lvl
		}
	}
	return &levelOverrideHandler{next: h.next.WithAttrs(attrs), level: level, overrides: h.overrides}
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithGroup(name), level: h.level, overrides: h.overrides}
}

// WithLevelOverride returns a logger that enforces the provided minimum level
// while preserving existing attributes and handler wiring.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	if current, ok := logger.Handler().(*levelOverrideHandler); ok {
		return slog.New(&levelOverrideHandler{next: current.next, level: level, overrides: current.overrides})
	}
	return slog.New(&levelOverrideHandler{next: logger.Handler(), level: level})
}
