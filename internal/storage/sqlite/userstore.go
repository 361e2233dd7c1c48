package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
)

// UserStore implements interfaces.UserStore on SQLite. Portfolio lots and
// watchlist entries live in child tables keyed by user_id.
type UserStore struct {
	db     *sql.DB
	logger *common.Logger
}

// NewUserStore opens the database at path (MemoryPath for a throwaway store).
func NewUserStore(ctx context.Context, path string, logger *common.Logger) (*UserStore, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("path", path).Msg("SQLite user store initialized")

	return &UserStore{db: db, logger: logger}, nil
}

func isConstraint(err error, code int) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == code
}

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) ||
		isConstraint(err, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY)
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY)
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

const userColumns = `id, username, first_name, last_name, brokerage, password_hash, admin, created_at, modified_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                 models.User
		created, modified int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Brokerage, &u.PasswordHash, &u.Admin, &created, &modified); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	u.ModifiedAt = fromMillis(modified)
	u.Portfolio = []models.Position{}
	u.Watchlist = []models.WatchlistEntry{}
	return &u, nil
}

func (s *UserStore) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.FirstName, user.LastName, user.Brokerage, user.PasswordHash, user.Admin,
		millis(user.CreatedAt), millis(user.ModifiedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create user %s: %w", user.Username, models.ErrConflict)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	for _, p := range user.Portfolio {
		if err := insertPosition(ctx, tx, user.ID, p); err != nil {
			return err
		}
	}
	for _, e := range user.Watchlist {
		if err := insertWatchlistEntry(ctx, tx, user.ID, e); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *UserStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return s.loadUser(ctx, row, id)
}

func (s *UserStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return s.loadUser(ctx, row, username)
}

func (s *UserStore) loadUser(ctx context.Context, row *sql.Row, key string) (*models.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", key, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select user: %w", err)
	}
	if err := s.loadCollections(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStore) loadCollections(ctx context.Context, u *models.User) error {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, price, quantity, added_at FROM positions WHERE user_id = ? ORDER BY id`, u.ID)
	if err != nil {
		return fmt.Errorf("failed to select positions: %w", err)
	}
	for rows.Next() {
		var (
			p     models.Position
			added int64
		)
		if err := rows.Scan(&p.Ticker, &p.Price, &p.Quantity, &added); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan position: %w", err)
		}
		p.AddedAt = fromMillis(added)
		u.Portfolio = append(u.Portfolio, p)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT ticker, low, high, added_at FROM watchlist WHERE user_id = ? ORDER BY id`, u.ID)
	if err != nil {
		return fmt.Errorf("failed to select watchlist: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			e     models.WatchlistEntry
			added int64
		)
		if err := rows.Scan(&e.Ticker, &e.Low, &e.High, &added); err != nil {
			return fmt.Errorf("failed to scan watchlist entry: %w", err)
		}
		e.AddedAt = fromMillis(added)
		u.Watchlist = append(u.Watchlist, e)
	}
	return rows.Err()
}

func (s *UserStore) UpdateUser(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users
		SET username = ?, first_name = ?, last_name = ?, brokerage = ?, password_hash = ?, admin = ?, modified_at = ?
		WHERE id = ?`,
		user.Username, user.FirstName, user.LastName, user.Brokerage, user.PasswordHash, user.Admin,
		millis(user.ModifiedAt), user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update user %s: %w", user.Username, models.ErrConflict)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", user.ID, models.ErrNotFound)
	}
	return nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	return nil
}

func (s *UserStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for _, u := range users {
		if err := s.loadCollections(ctx, u); err != nil {
			return nil, err
		}
	}
	return users, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPosition(ctx context.Context, db execer, userID string, p models.Position) error {
	_, err := db.ExecContext(ctx, `INSERT INTO positions (user_id, ticker, price, quantity, added_at) VALUES (?, ?, ?, ?, ?)`,
		userID, p.Ticker, p.Price.String(), p.Quantity, millis(p.AddedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to insert position: %w", err)
	}
	return nil
}

func insertWatchlistEntry(ctx context.Context, db execer, userID string, e models.WatchlistEntry) error {
	_, err := db.ExecContext(ctx, `INSERT INTO watchlist (user_id, ticker, low, high, added_at) VALUES (?, ?, ?, ?, ?)`,
		userID, e.Ticker, e.Low.String(), e.High.String(), millis(e.AddedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
		}
		return fmt.Errorf("failed to insert watchlist entry: %w", err)
	}
	return nil
}

func (s *UserStore) AppendPosition(ctx context.Context, userID string, p models.Position) error {
	return insertPosition(ctx, s.db, userID, p)
}

func (s *UserStore) RemovePositions(ctx context.Context, userID, ticker string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM positions WHERE user_id = ? AND ticker = ?`, userID, ticker)
	if err != nil {
		return 0, fmt.Errorf("failed to delete positions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *UserStore) AppendWatchlistEntry(ctx context.Context, userID string, e models.WatchlistEntry) error {
	return insertWatchlistEntry(ctx, s.db, userID, e)
}

func (s *UserStore) RemoveWatchlistEntries(ctx context.Context, userID, ticker string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE user_id = ? AND ticker = ?`, userID, ticker)
	if err != nil {
		return 0, fmt.Errorf("failed to delete watchlist entries: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *UserStore) Close() error {
	return s.db.Close()
}

// Compile-time check
var _ interfaces.UserStore = (*UserStore)(nil)
