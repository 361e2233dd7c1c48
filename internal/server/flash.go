package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"unicode/utf8"

	"github.com/bobmcallan/stockstash/internal/forms"
)

const flashCookie = "stockstash_flash"

// Flash categories.
const (
	CategorySuccess = "success"
	CategoryInfo    = "info"
	CategoryWarning = "warning"
	CategoryDanger  = "danger"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// flashState travels in a cookie across a Post/Redirect/Get cycle.
type flashState struct {
	Messages []Flash            `json:"m,omitempty"`
	Errors   []forms.FieldError `json:"e,omitempty"`
	Form     map[string]string  `json:"f,omitempty"`
}

// secretFields are never echoed back into a re-rendered form.
var secretFields = map[string]bool{
	forms.FieldPassword:        true,
	forms.FieldConfirmPassword: true,
}

// Browsers drop cookies over about 4KB, so echoed input is cut to fit.
const (
	maxEchoRunes   = 200
	maxFlashCookie = 3500
)

func (s *Server) flashCookieFor(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.app.Config.Server.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func encodeFlash(f flashState) string {
	raw, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// setFlash stores f for the next page. When the echoed form would push the
// cookie past the browser limit it is dropped and the errors are kept.
func (s *Server) setFlash(w http.ResponseWriter, f flashState) {
	value := encodeFlash(f)
	if len(value) > maxFlashCookie && len(f.Form) > 0 {
		f.Form = nil
		value = encodeFlash(f)
	}
	if value == "" {
		return
	}
	http.SetCookie(w, s.flashCookieFor(value, 0))
}

// takeFlash returns the pending flash and clears it. Undecodable cookies are dropped.
func (s *Server) takeFlash(w http.ResponseWriter, r *http.Request) flashState {
	var f flashState
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return f
	}
	http.SetCookie(w, s.flashCookieFor("", -1))

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return flashState{}
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return flashState{}
	}
	return f
}

// redirectFlash redirects to path with a single message.
func (s *Server) redirectFlash(w http.ResponseWriter, r *http.Request, path, category, message string) {
	s.setFlash(w, flashState{Messages: []Flash{{Category: category, Message: message}}})
	seeOther(w, r, path)
}

// redirectInvalid sends the user back to path with the field errors and
// their non-secret input, truncated.
func (s *Server) redirectInvalid(w http.ResponseWriter, r *http.Request, path string, res forms.Result, vals forms.Values) {
	form := make(map[string]string, len(vals))
	for k, v := range vals {
		if secretFields[k] {
			continue
		}
		if utf8.RuneCountInString(v) > maxEchoRunes {
			v = string([]rune(v)[:maxEchoRunes])
		}
		form[k] = v
	}
	s.setFlash(w, flashState{Errors: res.Errors, Form: form})
	seeOther(w, r, path)
}
