package logging

import (
	"context"
	"log/slog"
)

// stampHandler appends fixed attrs to every record at the top level, even
// after WithGroup.
type stampHandler struct {
	base  slog.Handler
	attrs []slog.Attr
}

// WithStamp returns a logger whose records always carry attrs. Empty string
// values are skipped.
func WithStamp(logger *slog.Logger, attrs ...Attr) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	kept := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return logger
	}
	return slog.New(&stampHandler{base: logger.Handler(), attrs: kept})
}

// WithSessionID stamps every record with the engine session identifier.
func WithSessionID(logger *slog.Logger, sessionID string) *slog.Logger {
	return WithStamp(logger, String(FieldSessionID, sessionID))
}

func (h *stampHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

func (h *stampHandler) Handle(ctx context.Context, record slog.Record) error {
	record.AddAttrs(h.attrs...)
	return h.base.Handle(ctx, record)
}

func (h *stampHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stampHandler{base: h.base.WithAttrs(attrs), attrs: h.attrs}
}

func (h *stampHandler) WithGroup(name string) slog.Handler {
	return &stampHandler{base: h.base.WithGroup(name), attrs: h.attrs}
}
