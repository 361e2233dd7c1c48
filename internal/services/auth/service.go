package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/interfaces"
	"github.com/bobmcallan/stockstash/internal/models"
)

const (
	issuer         = "stockstash"
	purposeClaim   = "purpose"
	purposeSession = "session"
	purposeReset   = "password_reset"
)

// Service issues and verifies credentials.
type Service struct {
	store          interfaces.UserStore
	secret         []byte
	cost           int
	sessionExpiry  time.Duration
	rememberExpiry time.Duration
	resetExpiry    time.Duration
	logger         *common.Logger
	now            func() time.Time
}

// NewService creates the credential service from the [auth] config section.
func NewService(store interfaces.UserStore, cfg common.AuthConfig, logger *common.Logger) *Service {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		store:          store,
		secret:         []byte(cfg.JWTSecret),
		cost:           cost,
		sessionExpiry:  cfg.GetSessionExpiry(),
		rememberExpiry: cfg.GetRememberExpiry(),
		resetExpiry:    cfg.GetResetTokenExpiry(),
		logger:         logger,
		now:            time.Now,
	}
}

// SetClock overrides the time source used for issuing and validating tokens.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ResetExpiry is the validity window of reset tokens.
func (s *Service) ResetExpiry() time.Duration {
	return s.resetExpiry
}

func (s *Service) sign(claims jwt.MapClaims, key []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

func (s *Service) parse(tokenString string, key []byte, purpose string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, err
	}
	if p, _ := claims[purposeClaim].(string); p != purpose {
		return nil, fmt.Errorf("token purpose %q, want %q", p, purpose)
	}
	return claims, nil
}

// resetKey binds reset tokens to the current password hash, so a token
// stops verifying as soon as the password it was issued for changes.
func (s *Service) resetKey(user *models.User) []byte {
	key := make([]byte, 0, len(s.secret)+len(user.PasswordHash))
	key = append(key, s.secret...)
	return append(key, user.PasswordHash...)
}

// IssueResetToken returns a signed, expiring password reset token for user.
func (s *Service) IssueResetToken(user *models.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":        user.ID,
		"iss":        issuer,
		"iat":        now.Unix(),
		"exp":        now.Add(s.resetExpiry).Unix(),
		purposeClaim: purposeReset,
	}
	token, err := s.sign(claims, s.resetKey(user))
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return token, nil
}

// VerifyResetToken returns the user a reset token was issued to.
// Malformed, tampered, expired or already used tokens yield models.ErrInvalidToken.
func (s *Service) VerifyResetToken(ctx context.Context, tokenString string) (*models.User, error) {
	unverified := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, unverified); err != nil {
		return nil, models.ErrInvalidToken
	}
	sub, _ := unverified["sub"].(string)
	if sub == "" {
		return nil, models.ErrInvalidToken
	}

	user, err := s.store.GetUser(ctx, sub)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.parse(tokenString, s.resetKey(user), purposeReset); err != nil {
		s.logger.Debug().Err(err).Str("user_id", sub).Msg("Reset token rejected")
		return nil, models.ErrInvalidToken
	}
	return user, nil
}

// IssueSessionToken returns a session token for user and its expiry.
// remember selects the long-lived lifetime.
func (s *Service) IssueSessionToken(user *models.User, remember bool) (string, time.Time, error) {
	now := s.now()
	ttl := s.sessionExpiry
	if remember {
		ttl = s.rememberExpiry
	}
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub":        user.ID,
		"iss":        issuer,
		"iat":        now.Unix(),
		"exp":        exp.Unix(),
		purposeClaim: purposeSession,
	}
	token, err := s.sign(claims, s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, exp, nil
}

// ParseSessionToken validates a session token and returns the user id it names.
func (s *Service) ParseSessionToken(tokenString string) (string, error) {
	claims, err := s.parse(tokenString, s.secret, purposeSession)
	if err != nil {
		return "", models.ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", models.ErrInvalidToken
	}
	return sub, nil
}
