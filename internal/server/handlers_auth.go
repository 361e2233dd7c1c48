package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/stockstash/internal/forms"
	"github.com/bobmcallan/stockstash/internal/models"
)

const (
	msgLoginFailed   = "Login Unsuccessful. Please check email and password"
	msgResetSent     = "An email has been sent with instructions to reset your password."
	msgInvalidToken  = "That is an invalid or expired token"
	msgPasswordReset = "Your password has been updated! You are now able to log in"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, Page{Name: "login", Title: "Login"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	vals := forms.FromURLValues(r.PostForm)
	login, res := s.app.Forms.Login(r.Context(), vals)
	if !res.Valid() {
		s.redirectInvalid(w, r, "/login", res, vals)
		return
	}

	user, err := s.app.Directory.Authenticate(r.Context(), login.Username, login.Password)
	if errors.Is(err, models.ErrUnauthorized) {
		s.redirectFlash(w, r, "/login", CategoryDanger, msgLoginFailed)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	if err := s.startSession(w, user, login.Remember); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.logger.Info().Str("user_id", user.ID).Bool("remember", login.Remember).Msg("User logged in")
	seeOther(w, r, "/portfolio")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	seeOther(w, r, "/login")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, Page{Name: "register", Title: "Register"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	vals := forms.FromURLValues(r.PostForm)
	reg, res := s.app.Forms.Registration(r.Context(), vals)
	if !res.Valid() {
		s.redirectInvalid(w, r, "/register", res, vals)
		return
	}

	user, err := s.app.Directory.Register(r.Context(), reg.Username, reg.Password, reg.Profile)
	if errors.Is(err, models.ErrConflict) {
		// lost a registration race after the form check passed
		res.Add(forms.FieldUsername, forms.MsgUsernameTaken)
		s.redirectInvalid(w, r, "/register", res, vals)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.redirectFlash(w, r, "/login", CategorySuccess,
		fmt.Sprintf("Welcome to StockStash %s! Please login with your new account.", user.FirstName))
}

func (s *Server) handleResetRequestPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, Page{Name: "reset_request", Title: "Reset Password"})
}

func (s *Server) resetLink(r *http.Request, token string) string {
	base := strings.TrimRight(s.app.Config.Server.BaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/reset_password/" + url.PathEscape(token)
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	vals := forms.FromURLValues(r.PostForm)
	identifier, res := s.app.Forms.RequestReset(r.Context(), vals)
	if !res.Valid() {
		s.redirectInvalid(w, r, "/reset_password", res, vals)
		return
	}

	user, err := s.app.Directory.FindByIdentifier(r.Context(), identifier)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	token, err := s.app.Auth.IssueResetToken(user)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	msg := models.Mail{
		To:      user.Username,
		Subject: "Password Reset Request",
		Body: fmt.Sprintf("To reset your password, visit the following link:\n%s\n\n"+
			"The link expires in %s. If you did not make this request then simply ignore this email and no changes will be made.",
			s.resetLink(r, token), s.app.Auth.ResetExpiry()),
	}
	if err := s.app.Mailer.Send(r.Context(), msg); err != nil {
		s.serverError(w, r, err)
		return
	}

	s.redirectFlash(w, r, "/login", CategoryInfo, msgResetSent)
}

func (s *Server) handleResetTokenPage(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if _, err := s.app.Auth.VerifyResetToken(r.Context(), token); err != nil {
		s.resetTokenFailed(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, Page{Name: "reset_token", Title: "Reset Password"})
}

func (s *Server) handleResetToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	user, err := s.app.Auth.VerifyResetToken(r.Context(), token)
	if err != nil {
		s.resetTokenFailed(w, r, err)
		return
	}

	if !parseForm(w, r) {
		return
	}
	vals := forms.FromURLValues(r.PostForm)
	password, res := forms.ResetPassword(r.Context(), vals)
	if !res.Valid() {
		s.redirectInvalid(w, r, "/reset_password/"+url.PathEscape(token), res, vals)
		return
	}

	if err := s.app.Directory.SetPassword(r.Context(), user.ID, password); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.redirectFlash(w, r, "/login", CategorySuccess, msgPasswordReset)
}

func (s *Server) resetTokenFailed(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, models.ErrInvalidToken) {
		s.redirectFlash(w, r, "/reset_password", CategoryWarning, msgInvalidToken)
		return
	}
	s.serverError(w, r, err)
}
