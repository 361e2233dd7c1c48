package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/stockstash/internal/models"
)

const sessionCookie = "stockstash_session"

// startSession issues a session token for user. Without remember the cookie
// lives for the browser session only.
func (s *Server) startSession(w http.ResponseWriter, user *models.User, remember bool) error {
	token, expires, err := s.app.Auth.IssueSessionToken(user, remember)
	if err != nil {
		return err
	}
	c := &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.app.Config.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		c.Expires = expires
		c.MaxAge = int(time.Until(expires).Seconds())
	}
	http.SetCookie(w, c)
	return nil
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.app.Config.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
