// Package interfaces defines service contracts for StockStash
package interfaces

import (
	"context"

	"github.com/bobmcallan/stockstash/internal/models"
)

// UserStore persists users together with their embedded portfolio and
// watchlist. Every collection mutation is scoped to the owning user id.
//
// Username uniqueness is enforced by the backend itself; CreateUser and
// UpdateUser return models.ErrConflict when it is violated.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	// GetUser and GetUserByUsername return models.ErrNotFound when absent.
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	// UpdateUser writes the scalar fields of user (profile, hash, admin flag).
	// Portfolio and watchlist are left untouched.
	UpdateUser(ctx context.Context, user *models.User) error
	// DeleteUser removes the user and all owned entries.
	DeleteUser(ctx context.Context, id string) error
	// ListUsers returns all users ordered by username.
	ListUsers(ctx context.Context) ([]*models.User, error)

	AppendPosition(ctx context.Context, userID string, p models.Position) error
	// RemovePositions deletes every lot of ticker owned by userID and reports how many went.
	RemovePositions(ctx context.Context, userID, ticker string) (int, error)
	AppendWatchlistEntry(ctx context.Context, userID string, e models.WatchlistEntry) error
	RemoveWatchlistEntries(ctx context.Context, userID, ticker string) (int, error)

	Close() error
}
