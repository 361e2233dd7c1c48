package server

import (
	"bytes"
	_ "embed"
	"net/http"
	"sync"

	"github.com/yuin/goldmark"

	"github.com/bobmcallan/stockstash/internal/common"
)

//go:embed landing.md
var landingMarkdown []byte

var (
	landingOnce sync.Once
	landingHTML string
	landingErr  error
)

func renderLanding() (string, error) {
	landingOnce.Do(func() {
		var buf bytes.Buffer
		landingErr = goldmark.Convert(landingMarkdown, &buf)
		landingHTML = buf.String()
	})
	return landingHTML, landingErr
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	html, err := renderLanding()
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, Page{
		Name:  "home",
		Title: "Stockstash",
		Data:  map[string]string{"html": html},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": common.Version,
		"storage": s.app.Config.Storage.Driver,
	})
}
