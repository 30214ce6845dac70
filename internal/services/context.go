package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	driveIDKey   contextKey = "drive_id"
	requestIDKey contextKey = "request_id"
)

// WithJobID annotates context with the rip job identifier.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the rip job identifier if present.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(jobIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithDriveID annotates context with the drive identifier.
func WithDriveID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, driveIDKey, id)
}

// DriveIDFromContext extracts the drive identifier if present.
func DriveIDFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(driveIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
