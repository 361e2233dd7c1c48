package models

import "errors"

// Business errors shared by the stores, services and HTTP layer.
var (
	ErrConflict         = errors.New("identifier already registered")
	ErrNotFound         = errors.New("not found")
	ErrInvalidTicker    = errors.New("not a valid ticker")
	ErrInvalidRange     = errors.New("low price must be lower than high price")
	ErrAmountOutOfRange = errors.New("amount has too many digits")
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrUnauthorized     = errors.New("authentication required")
	ErrForbidden        = errors.New("not permitted")
)
