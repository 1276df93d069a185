package services

import "context"

type contextKey string

const (
	itemIDKey    contextKey = "item_id"
	batchIDKey   contextKey = "batch_id"
	sessionIDKey contextKey = "session_id"
	requestIDKey contextKey = "request_id"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithItemID annotates context with the upload item identifier.
func WithItemID(ctx context.Context, id string) context.Context {
	return withString(ctx, itemIDKey, id)
}

// ItemIDFromContext extracts the upload item identifier if present.
func ItemIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, itemIDKey)
}

// WithBatchID annotates context with the batch an item was submitted in.
func WithBatchID(ctx context.Context, id string) context.Context {
	return withString(ctx, batchIDKey, id)
}

func BatchIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, batchIDKey)
}

// WithSessionID annotates context with a recovery session identifier.
func WithSessionID(ctx context.Context, id string) context.Context {
	return withString(ctx, sessionIDKey, id)
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, sessionIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
