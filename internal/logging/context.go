package logging

import (
	"context"
	"log/slog"

	"captionsync/internal/services"
)

var contextExtractors = []struct {
	key string
	get func(context.Context) (string, bool)
}{
	{FieldSessionID, services.SessionIDFromContext},
	{FieldProvider, services.ProviderFromContext},
	{FieldCorrelationID, services.RequestIDFromContext},
}

// ContextFields returns the session, provider and request tags carried by ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var fields []slog.Attr
	for _, ex := range contextExtractors {
		if v, ok := ex.get(ctx); ok {
			fields = append(fields, slog.String(ex.key, v))
		}
	}
	return fields
}

// WithContext adds the tags carried by ctx to logger.
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
