package city

import (
	"context"
	"errors"
)

// ErrNoSession means a consumer asked for the session outside a scope that provides one.
var ErrNoSession = errors.New("city session must be used within a context carrying a session")

type sessionKey struct{}

// WithSession scopes s to ctx and everything derived from it.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session scoped to ctx.
func FromContext(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	if !ok || s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

// MustFromContext is FromContext for call sites where a missing session is a bug.
func MustFromContext(ctx context.Context) *Session {
	s, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return s
}
