package engine

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type correlationKey struct{}

// WithCorrelationID returns a child of ctx carrying id as the current correlation id.
//
// The id is visible to everything that receives the returned context,
// including goroutines the task body starts with it, and to nothing else.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id carried by ctx, if any.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// NewCorrelationID generates a new v4 [uuid.UUID] as a string
func NewCorrelationID() string {
	return uuid.New().String()
}

// LoggerFrom returns base tagged with the correlation id in ctx.
// base is returned unchanged when ctx has no id.
func LoggerFrom(ctx context.Context, base *log.Logger) *log.Logger {
	if base == nil {
		base = log.Default()
	}
	if id, ok := CorrelationID(ctx); ok {
		return base.With("cid", id)
	}
	return base
}
