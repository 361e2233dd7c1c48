package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bobmcallan/stockstash/internal/forms"
	"github.com/bobmcallan/stockstash/internal/models"
	"github.com/bobmcallan/stockstash/internal/services/position"
)

const msgStockAdded = "New stock added!"

func (s *Server) handlePortfolioPage(w http.ResponseWriter, r *http.Request) {
	view := s.app.Positions.Portfolio(r.Context(), currentUser(r))
	s.render(w, r, http.StatusOK, Page{Name: "portfolio", Title: "Portfolio", Data: view})
}

func (s *Server) handlePortfolioAdd(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	vals := forms.FromURLValues(r.PostForm)
	stock, res := s.app.Forms.AddStock(r.Context(), vals)
	if !res.Valid() {
		s.redirectInvalid(w, r, "/portfolio", res, vals)
		return
	}

	err := s.app.Positions.AddPosition(r.Context(), sessionFrom(r).UserID, stock.Ticker, stock.Price, stock.Quantity)
	switch {
	case err == nil:
		s.redirectFlash(w, r, "/portfolio", CategorySuccess, msgStockAdded)
	case errors.Is(err, models.ErrInvalidTicker):
		res.Add(forms.FieldTicker, forms.MsgInvalidTicker)
		s.redirectInvalid(w, r, "/portfolio", res, vals)
	case errors.Is(err, position.ErrInvalidPrice):
		res.Add(forms.FieldPrice, forms.MsgPositive)
		s.redirectInvalid(w, r, "/portfolio", res, vals)
	case errors.Is(err, models.ErrAmountOutOfRange):
		res.Add(forms.FieldPrice, forms.MsgAmountRange)
		s.redirectInvalid(w, r, "/portfolio", res, vals)
	case errors.Is(err, position.ErrInvalidQuantity):
		res.Add(forms.FieldQuantity, forms.MsgAtLeastOne)
		s.redirectInvalid(w, r, "/portfolio", res, vals)
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) handlePortfolioDelete(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if _, err := s.app.Positions.RemovePosition(r.Context(), sessionFrom(r).UserID, ticker); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.redirectFlash(w, r, "/portfolio", CategorySuccess, ticker+" has been deleted from your portfolio")
}

func (s *Server) handleWatchlistPage(w http.ResponseWriter, r *http.Request) {
	view := s.app.Positions.Watchlist(r.Context(), currentUser(r))
	s.render(w, r, http.StatusOK, Page{Name: "watchlist", Title: "Watchlist", Data: view})
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r) {
		return
	}
	vals := forms.FromURLValues(r.PostForm)
	entry, res := s.app.Forms.AddWatch(r.Context(), vals)
	if !res.Valid() {
		s.redirectInvalid(w, r, "/watchlist", res, vals)
		return
	}

	err := s.app.Positions.AddWatchlistEntry(r.Context(), sessionFrom(r).UserID, entry.Ticker, entry.Low, entry.High)
	switch {
	case err == nil:
		s.redirectFlash(w, r, "/watchlist", CategorySuccess, msgStockAdded)
	case errors.Is(err, models.ErrInvalidRange):
		res.Add(forms.FieldTicker, forms.MsgLowAboveHigh)
		s.redirectInvalid(w, r, "/watchlist", res, vals)
	case errors.Is(err, models.ErrAmountOutOfRange):
		res.Add(forms.FieldTicker, forms.MsgAmountRange)
		s.redirectInvalid(w, r, "/watchlist", res, vals)
	case errors.Is(err, models.ErrInvalidTicker):
		res.Add(forms.FieldTicker, forms.MsgInvalidTicker)
		s.redirectInvalid(w, r, "/watchlist", res, vals)
	default:
		s.serverError(w, r, err)
	}
}

func (s *Server) handleWatchlistDelete(w http.ResponseWriter, r *http.Request) {
	ticker := chi.URLParam(r, "ticker")
	if _, err := s.app.Positions.RemoveWatchlistEntry(r.Context(), sessionFrom(r).UserID, ticker); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.redirectFlash(w, r, "/watchlist", CategorySuccess, ticker+" has been deleted from your watchlist")
}
