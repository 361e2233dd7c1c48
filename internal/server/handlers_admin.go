package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/stockstash/internal/models"
	"github.com/bobmcallan/stockstash/internal/services/directory"
)

// AdminPanel is the data of the admin page.
type AdminPanel struct {
	Count int                  `json:"count"`
	Users []models.UserSummary `json:"users"`
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	users, err := s.app.Directory.List(r.Context())
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, Page{
		Name:  "admin",
		Title: "Admin Panel",
		Data:  AdminPanel{Count: len(users), Users: users},
	})
}

// adminFailed maps directory errors of an admin action to a flash.
func (s *Server) adminFailed(w http.ResponseWriter, r *http.Request, identifier string, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.redirectFlash(w, r, "/admin", CategoryWarning, fmt.Sprintf("%s does not exist", identifier))
	case errors.Is(err, models.ErrForbidden), errors.Is(err, models.ErrUnauthorized):
		s.redirectFlash(w, r, "/", CategoryDanger, "You do not have access to that page.")
	default:
		s.serverError(w, r, err)
	}
}

// finishAdminAction ends the caller's session when they acted on themselves.
func (s *Server) finishAdminAction(w http.ResponseWriter, r *http.Request, out directory.Outcome, message string) {
	if out.ActedOnSelf {
		s.clearSessionCookie(w)
		s.redirectFlash(w, r, "/login", CategorySuccess, message)
		return
	}
	s.redirectFlash(w, r, "/admin", CategorySuccess, message)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	out, err := s.app.Directory.Delete(r.Context(), sessionFrom(r), identifier)
	if err != nil {
		s.adminFailed(w, r, identifier, err)
		return
	}
	msg := identifier + " has been deleted from the system"
	if out.ActedOnSelf {
		msg += ".  Admin is no longer active"
	}
	s.finishAdminAction(w, r, out, msg)
}

func (s *Server) handleAdminAssign(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	if _, err := s.app.Directory.SetAdmin(r.Context(), sessionFrom(r), identifier, true); err != nil {
		s.adminFailed(w, r, identifier, err)
		return
	}
	// granting never ends a session, even one's own
	s.finishAdminAction(w, r, directory.Outcome{}, identifier+" has been assigned admin privledges")
}

func (s *Server) handleAdminRemove(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	out, err := s.app.Directory.SetAdmin(r.Context(), sessionFrom(r), identifier, false)
	if err != nil {
		s.adminFailed(w, r, identifier, err)
		return
	}
	s.finishAdminAction(w, r, out, identifier+" admin privledges removed")
}
