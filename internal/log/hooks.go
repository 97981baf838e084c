package log

import (
	"context"
)

// Hook derives extra fields for an entry from the context it is logged with.
type Hook interface {
	Apply(ctx context.Context, msg string, fields ...Field) []Field
}

type HookFunc func(ctx context.Context, msg string, fields ...Field) []Field

func (f HookFunc) Apply(ctx context.Context, msg string, fields ...Field) []Field {
	return f(ctx, msg, fields...)
}

type contextFieldsKey struct{}

// WithFields returns a context whose log entries carry the given fields.
func WithFields(ctx context.Context, fields ...Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}

	existing, _ := ctx.Value(contextFieldsKey{}).([]Field)
	merged := make([]Field, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)

	return context.WithValue(ctx, contextFieldsKey{}, merged)
}

func contextFields(ctx context.Context, _ string, fields ...Field) []Field {
	//nolint:staticcheck // nil ctx is tolerated by the global helpers.
	if ctx == nil {
		return fields
	}

	extra, ok := ctx.Value(contextFieldsKey{}).([]Field)
	if !ok {
		return fields
	}

	return append(fields, extra...)
}
