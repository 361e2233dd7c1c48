package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/models"
	"github.com/bobmcallan/stockstash/internal/services/quote"
)

const correlationHeader = "X-Correlation-ID"

// responseWriter wraps http.ResponseWriter to capture status code and bytes written.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// recoveryMiddleware turns panics into the generic error page.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.serverError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// correlationIDMiddleware extracts or generates a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := r.Header.Get("X-Request-ID")
		if corrID == "" {
			corrID = r.Header.Get(correlationHeader)
		}
		if corrID == "" {
			corrID = uuid.New().String()[:8]
		}
		w.Header().Set(correlationHeader, corrID)
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(logger *common.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			event := logger.Debug()
			if rw.statusCode >= 500 {
				event = logger.Error()
			} else if rw.statusCode >= 400 {
				event = logger.Info()
			}

			event.
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.statusCode).
				Int("bytes", rw.bytesWritten).
				Dur("duration", time.Since(start)).
				Str("correlation_id", w.Header().Get(correlationHeader)).
				Msg("HTTP request")
		})
	}
}

// tickerMemoMiddleware scopes ticker validity results to one request.
func tickerMemoMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(quote.WithTickerMemo(r.Context())))
	})
}

type userKey struct{}

// sessionMiddleware resolves the session cookie into a request-scoped
// common.Session. Invalid cookies and deleted users become anonymous and
// the cookie is cleared.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := &common.Session{}
		ctx := r.Context()

		if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
			user, err := s.resolveSession(ctx, c.Value)
			switch {
			case err == nil:
				sess = &common.Session{UserID: user.ID, Username: user.Username, Admin: user.Admin}
				ctx = context.WithValue(ctx, userKey{}, user)
			case errors.Is(err, models.ErrInvalidToken), errors.Is(err, models.ErrNotFound):
				s.clearSessionCookie(w)
			default:
				s.serverError(w, r, err)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(common.WithSession(ctx, sess)))
	})
}

func (s *Server) resolveSession(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.app.Auth.ParseSessionToken(token)
	if err != nil {
		return nil, err
	}
	return s.app.Directory.Get(ctx, userID)
}

func sessionFrom(r *http.Request) *common.Session {
	return common.SessionFromContext(r.Context())
}

// currentUser is the user loaded by sessionMiddleware, nil when anonymous.
func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey{}).(*models.User)
	return u
}

// requireAuth sends anonymous visitors to the login page.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r).Authenticated() {
			s.redirectFlash(w, r, "/login", CategoryInfo, "Please log in to access this page.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin checks authentication and the admin flag independently.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		if !sess.Authenticated() {
			s.redirectFlash(w, r, "/login", CategoryInfo, "Please log in to access this page.")
			return
		}
		if !sess.IsAdmin() {
			s.redirectFlash(w, r, "/", CategoryDanger, "You do not have access to that page.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// anonOnly sends signed in users to their portfolio.
func anonOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sessionFrom(r).Authenticated() {
			seeOther(w, r, "/portfolio")
			return
		}
		next.ServeHTTP(w, r)
	})
}
