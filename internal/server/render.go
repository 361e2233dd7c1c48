package server

import (
	"encoding/json"
	"net/http"

	"github.com/bobmcallan/stockstash/internal/forms"
)

// Page is the model handed to a Renderer.
type Page struct {
	Name    string             `json:"page"`
	Title   string             `json:"title"`
	User    *PageUser          `json:"user,omitempty"`
	Data    any                `json:"data,omitempty"`
	Flashes []Flash            `json:"flashes,omitempty"`
	Errors  []forms.FieldError `json:"errors,omitempty"`
	Form    map[string]string  `json:"form,omitempty"`
}

// PageUser is the signed in user as shown in the page chrome.
type PageUser struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// Renderer turns a page model into a response body.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request, status int, page Page) error
}

// JSONRenderer writes the page model as JSON, for a template layer or SPA on top.
type JSONRenderer struct{}

func (JSONRenderer) Render(w http.ResponseWriter, _ *http.Request, status int, page Page) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(page)
}

// render fills the page chrome from the request and pending flash, then renders.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page Page) {
	if sess := sessionFrom(r); sess.Authenticated() {
		page.User = &PageUser{Username: sess.Username, Admin: sess.Admin}
	}

	f := s.takeFlash(w, r)
	page.Flashes = append(page.Flashes, f.Messages...)
	page.Errors = append(page.Errors, f.Errors...)
	if len(f.Form) > 0 {
		if page.Form == nil {
			page.Form = map[string]string{}
		}
		for k, v := range f.Form {
			page.Form[k] = v
		}
	}

	if err := s.renderer.Render(w, r, status, page); err != nil {
		s.logger.Error().Err(err).Str("page", page.Name).Msg("Failed to render page")
	}
}

// serverError logs err and renders the generic error page.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("correlation_id", w.Header().Get(correlationHeader)).
		Msg("Request failed")
	s.render(w, r, http.StatusInternalServerError, Page{
		Name:  "error",
		Title: "Error",
		Flashes: []Flash{{
			Category: CategoryDanger,
			Message:  "Something went wrong. Please try again.",
		}},
	})
}
