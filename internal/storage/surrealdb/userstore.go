package surrealdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
)

const userTable = "user"

// userDoc is the stored shape of a user. Prices are strings so they keep
// their exact decimal value and stay readable in queries.
type userDoc struct {
	UserID       string        `json:"user_id"`
	Username     string        `json:"username"`
	FirstName    string        `json:"first_name"`
	LastName     string        `json:"last_name"`
	Brokerage    string        `json:"brokerage"`
	PasswordHash string        `json:"password_hash"`
	Admin        bool          `json:"admin"`
	Portfolio    []positionDoc `json:"portfolio"`
	Watchlist    []watchDoc    `json:"watchlist"`
	CreatedAt    time.Time     `json:"created_at"`
	ModifiedAt   time.Time     `json:"modified_at"`
}

type positionDoc struct {
	Ticker   string    `json:"ticker"`
	Price    string    `json:"price"`
	Quantity int64     `json:"quantity"`
	AddedAt  time.Time `json:"added_at"`
}

type watchDoc struct {
	Ticker  string    `json:"ticker"`
	Low     string    `json:"low"`
	High    string    `json:"high"`
	AddedAt time.Time `json:"added_at"`
}

func toPositionDoc(p models.Position) positionDoc {
	return positionDoc{Ticker: p.Ticker, Price: p.Price.String(), Quantity: p.Quantity, AddedAt: p.AddedAt.UTC()}
}

func toWatchDoc(e models.WatchlistEntry) watchDoc {
	return watchDoc{Ticker: e.Ticker, Low: e.Low.String(), High: e.High.String(), AddedAt: e.AddedAt.UTC()}
}

func toDoc(u *models.User) userDoc {
	d := userDoc{
		UserID:       u.ID,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Brokerage:    u.Brokerage,
		PasswordHash: u.PasswordHash,
		Admin:        u.Admin,
		Portfolio:    make([]positionDoc, 0, len(u.Portfolio)),
		Watchlist:    make([]watchDoc, 0, len(u.Watchlist)),
		CreatedAt:    u.CreatedAt.UTC(),
		ModifiedAt:   u.ModifiedAt.UTC(),
	}
	for _, p := range u.Portfolio {
		d.Portfolio = append(d.Portfolio, toPositionDoc(p))
	}
	for _, e := range u.Watchlist {
		d.Watchlist = append(d.Watchlist, toWatchDoc(e))
	}
	return d
}

func (d *userDoc) toModel() *models.User {
	u := &models.User{
		ID:           d.UserID,
		Username:     d.Username,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Brokerage:    d.Brokerage,
		PasswordHash: d.PasswordHash,
		Admin:        d.Admin,
		Portfolio:    make([]models.Position, 0, len(d.Portfolio)),
		Watchlist:    make([]models.WatchlistEntry, 0, len(d.Watchlist)),
		CreatedAt:    d.CreatedAt,
		ModifiedAt:   d.ModifiedAt,
	}
	for _, p := range d.Portfolio {
		u.Portfolio = append(u.Portfolio, models.Position{
			Ticker:   p.Ticker,
			Price:    parseDecimal(p.Price),
			Quantity: p.Quantity,
			AddedAt:  p.AddedAt,
		})
	}
	for _, e := range d.Watchlist {
		u.Watchlist = append(u.Watchlist, models.WatchlistEntry{
			Ticker:  e.Ticker,
			Low:     parseDecimal(e.Low),
			High:    parseDecimal(e.High),
			AddedAt: e.AddedAt,
		})
	}
	return u
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// UserStore implements interfaces.UserStore using SurrealDB.
type UserStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewUserStore(db *surrealdb.DB, logger *common.Logger) *UserStore {
	return &UserStore{
		db:     db,
		logger: logger,
	}
}

// firstResult returns the rows of the first statement in a query response.
func firstResult(results *[]surrealdb.QueryResult[[]userDoc]) []userDoc {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// write runs a mutating statement, retrying transport failures. Uniqueness
// violations are returned immediately as models.ErrConflict.
func (s *UserStore) write(ctx context.Context, op, sql string, vars map[string]any) ([]userDoc, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		results, err := surrealdb.Query[[]userDoc](ctx, s.db, sql, vars)
		if err == nil {
			return firstResult(results), nil
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrConflict)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to %s: %w", op, err)
		}
		lastErr = err
		s.logger.Warn().Err(err).Int("attempt", attempt).Str("op", op).Msg("SurrealDB write failed")
	}
	return nil, fmt.Errorf("failed to %s after retries: %w", op, lastErr)
}

func (s *UserStore) CreateUser(ctx context.Context, user *models.User) error {
	sql := "CREATE type::record('user', $id) CONTENT $user"
	vars := map[string]any{"id": user.ID, "user": toDoc(user)}

	_, err := s.write(ctx, "create user "+user.Username, sql, vars)
	return err
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	doc, err := surrealdb.Select[userDoc](ctx, s.db, surrealmodels.NewRecordID(userTable, id))
	if err != nil {
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	if doc == nil || doc.UserID == "" {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	return doc.toModel(), nil
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	sql := "SELECT * FROM user WHERE username = $username LIMIT 1"
	vars := map[string]any{"username": username}

	results, err := surrealdb.Query[[]userDoc](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query user by username: %w", err)
	}
	docs := firstResult(results)
	if len(docs) == 0 {
		return nil, fmt.Errorf("user %s: %w", username, models.ErrNotFound)
	}
	return docs[0].toModel(), nil
}

func (s *UserStore) UpdateUser(ctx context.Context, user *models.User) error {
	sql := `UPDATE type::record('user', $id) MERGE {
		username: $username,
		first_name: $first_name,
		last_name: $last_name,
		brokerage: $brokerage,
		password_hash: $password_hash,
		admin: $admin,
		modified_at: $modified_at
	}`
	vars := map[string]any{
		"id":            user.ID,
		"username":      user.Username,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"brokerage":     user.Brokerage,
		"password_hash": user.PasswordHash,
		"admin":         user.Admin,
		"modified_at":   user.ModifiedAt.UTC(),
	}

	docs, err := s.write(ctx, "update user "+user.Username, sql, vars)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrNotFound)
	}
	return nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	sql := "DELETE type::record('user', $id) RETURN BEFORE"
	vars := map[string]any{"id": id}

	docs, err := s.write(ctx, "delete user", sql, vars)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *UserStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	list, err := surrealdb.Select[[]userDoc](ctx, s.db, surrealmodels.Table(userTable))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var users []*models.User
	if list != nil {
		for i := range *list {
			if (*list)[i].UserID != "" {
				users = append(users, (*list)[i].toModel())
			}
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *UserStore) appendTo(ctx context.Context, field, userID string, entry any) error {
	sql := fmt.Sprintf("UPDATE type::record('user', $id) SET %s += $entry, modified_at = $now", field)
	vars := map[string]any{"id": userID, "entry": entry, "now": time.Now().UTC()}

	docs, err := s.write(ctx, "append "+field, sql, vars)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}
	return nil
}

// removeFrom filters every element with a matching ticker out of field and
// returns how many were dropped.
func (s *UserStore) removeFrom(ctx context.Context, field, userID, ticker string) (int, error) {
	sql := fmt.Sprintf("UPDATE type::record('user', $id) SET %[1]s = %[1]s[WHERE ticker != $ticker] RETURN BEFORE", field)
	vars := map[string]any{"id": userID, "ticker": ticker}

	docs, err := s.write(ctx, "remove from "+field, sql, vars)
	if err != nil || len(docs) == 0 {
		return 0, err
	}

	removed := 0
	switch field {
	case "portfolio":
		for _, p := range docs[0].Portfolio {
			if p.Ticker == ticker {
				removed++
			}
		}
	case "watchlist":
		for _, e := range docs[0].Watchlist {
			if e.Ticker == ticker {
				removed++
			}
		}
	}
	return removed, nil
}

func (s *UserStore) AppendPosition(ctx context.Context, userID string, p models.Position) error {
	return s.appendTo(ctx, "portfolio", userID, toPositionDoc(p))
}

func (s *UserStore) RemovePositions(ctx context.Context, userID, ticker string) (int, error) {
	return s.removeFrom(ctx, "portfolio", userID, ticker)
}

func (s *UserStore) AppendWatchlistEntry(ctx context.Context, userID string, e models.WatchlistEntry) error {
	return s.appendTo(ctx, "watchlist", userID, toWatchDoc(e))
}

func (s *UserStore) RemoveWatchlistEntries(ctx context.Context, userID, ticker string) (int, error) {
	return s.removeFrom(ctx, "watchlist", userID, ticker)
}

func (s *UserStore) Close() error {
	s.db.Close(context.Background())
	return nil
}

// Compile-time check
var _ interfaces.UserStore = (*UserStore)(nil)
