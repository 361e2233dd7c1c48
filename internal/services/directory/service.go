// Package directory manages StockStash user accounts
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
	"github.com/bobmcallan/stockstash/internal/services/auth"
)

// Outcome describes side effects the caller has to apply after an admin action.
type Outcome struct {
	ActedOnSelf bool
	Changed     bool
}

// Service is the user directory.
type Service struct {
	store  interfaces.UserStore
	creds  *auth.Service
	logger *common.Logger
	now    func() time.Time
}

// NewService creates the directory over store, hashing passwords with creds.
func NewService(store interfaces.UserStore, creds *auth.Service, logger *common.Logger) *Service {
	return &Service{
		store:  store,
		creds:  creds,
		logger: logger,
		now:    time.Now,
	}
}

// SetClock overrides the time source used for created/modified stamps.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Create stores a new user with an already hashed password.
func (s *Service) Create(ctx context.Context, identifier, hashedPassword string, profile models.Profile) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, fmt.Errorf("identifier is required")
	}

	now := s.now().UTC()
	user := &models.User{
		ID:           uuid.New().String(),
		PasswordHash: hashedPassword,
		Portfolio:    []models.Position{},
		Watchlist:    []models.WatchlistEntry{},
		CreatedAt:    now,
		ModifiedAt:   now,
	}
	profile.Apply(user)
	user.Username = identifier

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.logger.Debug().Str("username", identifier).Msg("Registration rejected, identifier taken")
		}
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("username", identifier).Msg("User created")
	return user, nil
}

// Register hashes password and creates the user.
func (s *Service) Register(ctx context.Context, identifier, password string, profile models.Profile) (*models.User, error) {
	hash, err := s.creds.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.Create(ctx, identifier, hash, profile)
}

// FindByIdentifier looks a user up by login identifier.
func (s *Service) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	return s.store.GetUserByUsername(ctx, strings.TrimSpace(identifier))
}

// Get looks a user up by record id.
func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

// Update applies a partial profile change. Changing the identifier to one
// held by another user is ErrConflict; keeping one's own is not.
func (s *Service) Update(ctx context.Context, user *models.User, profile models.Profile) (*models.User, error) {
	if profile.Username != nil {
		trimmed := strings.TrimSpace(*profile.Username)
		profile.Username = &trimmed
		if trimmed != user.Username {
			other, err := s.store.GetUserByUsername(ctx, trimmed)
			switch {
			case err == nil && other.ID != user.ID:
				return nil, fmt.Errorf("update user %s: %w", trimmed, models.ErrConflict)
			case err != nil && !errors.Is(err, models.ErrNotFound):
				return nil, err
			}
		}
	}

	updated := *user
	profile.Apply(&updated)
	updated.ModifiedAt = s.now().UTC()

	if err := s.store.UpdateUser(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetPassword replaces the password of userID. Outstanding reset tokens stop verifying.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := s.creds.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ModifiedAt = s.now().UTC()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", userID).Msg("Password changed")
	return nil
}

// Authenticate returns the user when identifier and password match.
// Unknown identifiers and wrong passwords are both ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := s.FindByIdentifier(ctx, identifier)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !s.creds.VerifyPassword(user.PasswordHash, password) {
		return nil, models.ErrUnauthorized
	}
	return user, nil
}

// resolve loads target and checks actor may perform action on it.
func (s *Service) resolve(ctx context.Context, actor *common.Session, identifier string, action Action) (*models.User, error) {
	if !actor.Authenticated() {
		return nil, models.ErrUnauthorized
	}
	target, err := s.FindByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if d := CanActOn(actor, target, action); !d.Allowed {
		s.logger.Warn().Str("actor", actor.Username).Str("target", target.Username).
			Str("action", action.String()).Msg("Directory action denied")
		return nil, d.Err
	}
	return target, nil
}

// SetAdmin grants or revokes admin for identifier. Setting the flag it
// already has is a no-op without a write.
func (s *Service) SetAdmin(ctx context.Context, actor *common.Session, identifier string, admin bool) (Outcome, error) {
	action := ActionAssignAdmin
	if !admin {
		action = ActionRevokeAdmin
	}
	target, err := s.resolve(ctx, actor, identifier, action)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{ActedOnSelf: ActedOnSelf(actor, target)}
	if target.Admin == admin {
		return out, nil
	}

	target.Admin = admin
	target.ModifiedAt = s.now().UTC()
	if err := s.store.UpdateUser(ctx, target); err != nil {
		return Outcome{}, err
	}
	out.Changed = true

	s.logger.Info().Str("actor", actor.Username).Str("target", target.Username).
		Bool("admin", admin).Msg("Admin flag changed")
	return out, nil
}

// Delete removes identifier with its portfolio and watchlist.
func (s *Service) Delete(ctx context.Context, actor *common.Session, identifier string) (Outcome, error) {
	target, err := s.resolve(ctx, actor, identifier, ActionDelete)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.store.DeleteUser(ctx, target.ID); err != nil {
		return Outcome{}, err
	}

	s.logger.Info().Str("actor", actor.Username).Str("target", target.Username).Msg("User deleted")
	return Outcome{ActedOnSelf: ActedOnSelf(actor, target), Changed: true}, nil
}

// List returns every user as a hash-free summary, ordered by identifier.
func (s *Service) List(ctx context.Context) ([]models.UserSummary, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, u.Summary())
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Username < summaries[j].Username
	})
	return summaries, nil
}

// Compile-time check
var _ interfaces.UserLookup = (*Service)(nil)
