package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bobmcallan/stockstash/internal/forms"
	"github.com/bobmcallan/stockstash/internal/models"
)

func (s *Server) handleAccountPage(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	s.render(w, r, http.StatusOK, Page{
		Name:  "account",
		Title: "Account",
		Data:  user.Summary(),
		Form: map[string]string{
			forms.FieldUsername:  user.Username,
			forms.FieldFirstName: user.FirstName,
			forms.FieldLastName:  user.LastName,
			forms.FieldBrokerage: user.Brokerage,
		},
	})
}

func (s *Server) handleAccountUpdate(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	user := currentUser(r)
	vals := forms.FromURLValues(r.PostForm)
	profile, res := s.app.Forms.Account(r.Context(), user.ID, vals)
	if !res.Valid() {
		s.redirectInvalid(w, r, "/account", res, vals)
		return
	}

	_, err := s.app.Directory.Update(r.Context(), user, profile)
	if errors.Is(err, models.ErrConflict) {
		res.Add(forms.FieldUsername, forms.MsgUsernameTaken)
		s.redirectInvalid(w, r, "/account", res, vals)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.redirectFlash(w, r, "/account", CategorySuccess, "Updated Account!")
}

func (s *Server) handleAccountDelete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if _, err := s.app.Directory.Delete(r.Context(), sess, sess.Username); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.clearSessionCookie(w)
	s.redirectFlash(w, r, "/login", CategorySuccess, fmt.Sprintf("%s has been deleted from the system", sess.Username))
}
