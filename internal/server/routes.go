package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.CleanPath)
	r.Use(correlationIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(s.recoveryMiddleware)
	if origins := s.app.Config.CORS.AllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", correlationHeader},
			ExposedHeaders:   []string{correlationHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(s.sessionMiddleware)
	r.Use(tickerMemoMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/healthz", s.handleHealth)
	r.Get("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(anonOnly)
		r.Get("/login", s.handleLoginPage)
		r.Post("/login", s.handleLogin)
		r.Get("/register", s.handleRegisterPage)
		r.Post("/register", s.handleRegister)
		r.Get("/reset_password", s.handleResetRequestPage)
		r.Post("/reset_password", s.handleResetRequest)
		r.Get("/reset_password/{token}", s.handleResetTokenPage)
		r.Post("/reset_password/{token}", s.handleResetToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/account", s.handleAccountPage)
		r.Post("/account", s.handleAccountUpdate)
		r.Post("/account/delete", s.handleAccountDelete)

		r.Get("/portfolio", s.handlePortfolioPage)
		r.Post("/portfolio", s.handlePortfolioAdd)
		r.Post("/portfolio/{ticker}/delete", s.handlePortfolioDelete)

		r.Get("/watchlist", s.handleWatchlistPage)
		r.Post("/watchlist", s.handleWatchlistAdd)
		r.Post("/watchlist/{ticker}/delete", s.handleWatchlistDelete)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Get("/", s.handleAdminPage)
		r.Post("/{identifier}/delete", s.handleAdminDelete)
		r.Post("/{identifier}/assign", s.handleAdminAssign)
		r.Post("/{identifier}/remove", s.handleAdminRemove)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, http.StatusNotFound, Page{Name: "not_found", Title: "Not Found"})
	})

	return r
}
