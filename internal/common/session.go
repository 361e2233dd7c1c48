package common

import "context"

// Session is the request-scoped identity resolved by the session middleware.
// The zero value is an anonymous session.
type Session struct {
	UserID   string
	Username string
	Admin    bool
}

// Authenticated reports whether the request carries a live session.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != ""
}

// IsAdmin reports whether the session belongs to an admin user.
func (s *Session) IsAdmin() bool {
	return s.Authenticated() && s.Admin
}

type contextKey int

const (
	sessionKey contextKey = iota
)

// WithSession stores a Session in the request context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the request's Session. Requests without one are anonymous.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}

// OperatorSession is the identity of the command line tool. It acts with
// admin rights and never matches a stored user.
func OperatorSession() *Session {
	return &Session{UserID: "operator", Username: "operator", Admin: true}
}
