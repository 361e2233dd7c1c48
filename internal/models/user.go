// Package models defines data structures for StockStash
package models

import "time"

// User is a StockStash account. Portfolio and Watchlist are owned by the
// user and never shared across accounts.
type User struct {
	ID           string           `json:"id"`
	Username     string           `json:"username"` // email-shaped login identifier, unique
	FirstName    string           `json:"first_name"`
	LastName     string           `json:"last_name"`
	Brokerage    string           `json:"brokerage,omitempty"`
	PasswordHash string           `json:"password_hash"`
	Admin        bool             `json:"admin"`
	Portfolio    []Position       `json:"portfolio"`
	Watchlist    []WatchlistEntry `json:"watchlist"`
	CreatedAt    time.Time        `json:"created_at"`
	ModifiedAt   time.Time        `json:"modified_at"`
}

// Profile holds the mutable profile fields of a user.
// Nil pointers are left untouched by partial updates.
type Profile struct {
	Username  *string
	FirstName *string
	LastName  *string
	Brokerage *string
}

// NewProfile builds a fully populated Profile.
func NewProfile(username, first, last, brokerage string) Profile {
	return Profile{
		Username:  &username,
		FirstName: &first,
		LastName:  &last,
		Brokerage: &brokerage,
	}
}

// Apply copies the set fields of p onto u.
func (p Profile) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Brokerage != nil {
		u.Brokerage = *p.Brokerage
	}
}

// UserSummary is the directory view of a user. It never carries the password hash.
type UserSummary struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Brokerage string    `json:"brokerage,omitempty"`
	Admin     bool      `json:"admin"`
	Positions int       `json:"positions"`
	Watching  int       `json:"watching"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the hash-free view of u.
func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Brokerage: u.Brokerage,
		Admin:     u.Admin,
		Positions: len(u.Portfolio),
		Watching:  len(u.Watchlist),
		CreatedAt: u.CreatedAt,
	}
}
