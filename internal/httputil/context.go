package httputil

import (
	"context"
	"net/http"
)

type contextKey string

const callerKey contextKey = "caller"

// Caller is the authenticated principal of a request
type Caller struct {
	UserID string
	Email  string
	Role   string
}

// Owner is the value recorded as a document's owner: the email when the
// token carries one, the subject otherwise.
func (c Caller) Owner() string {
	if c.Email != "" {
		return c.Email
	}
	return c.UserID
}

// WithCaller attaches the authenticated caller to the request
func WithCaller(r *http.Request, caller Caller) *http.Request {
	ctx := context.WithValue(r.Context(), callerKey, caller)
	return r.WithContext(ctx)
}

// CallerFrom returns the caller stored in ctx, if any
func CallerFrom(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}

// GetUserID returns the caller's subject, or "" for anonymous requests
func GetUserID(r *http.Request) string {
	caller, _ := CallerFrom(r.Context())
	return caller.UserID
}
