// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here to
// prevent typos and keep key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// SubjectKey contains the authenticated caller (*authz.Subject).
	// Set by: middleware.SubjectMiddleware (pkg/middleware/subject.go)
	// Required by: all tenant-scoped API endpoints
	SubjectKey Key = "subject"

	// RequestIDKey contains the request ID string.
	// Set by: middleware.RequestIDMiddleware
	// Used by: logging, tracing
	RequestIDKey Key = "request_id"
)

// WithSubject stores the caller identity in the context
func WithSubject(ctx context.Context, subject interface{}) context.Context {
	return context.WithValue(ctx, SubjectKey, subject)
}

// WithRequestID stores the request ID in the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(RequestIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
