package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/stockstash/internal/common"
	"github.com/bobmcallan/stockstash/internal/models"
	"github.com/bobmcallan/stockstash/internal/storage/sqlite"
)

type fixture struct {
	svc   *Service
	store *sqlite.UserStore
	user  *models.User
	now   time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.NewUserStore(ctx, sqlite.MemoryPath, common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := common.NewDefaultConfig().Auth
	cfg.JWTSecret = "test-secret"
	cfg.BcryptCost = 4

	f := &fixture{store: store, now: time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC)}
	f.svc = NewService(store, cfg, common.NewSilentLogger())
	f.svc.SetClock(func() time.Time { return f.now })

	hash, err := f.svc.HashPassword("hunter22")
	require.NoError(t, err)
	f.user = &models.User{
		ID:           "u1",
		Username:     "ada@example.com",
		FirstName:    "Ada",
		PasswordHash: hash,
		CreatedAt:    f.now,
		ModifiedAt:   f.now,
	}
	require.NoError(t, store.CreateUser(ctx, f.user))
	return f
}

func TestPassword_HashAndVerify(t *testing.T) {
	f := newFixture(t)

	hash, err := f.svc.HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, f.svc.VerifyPassword(hash, "s3cret!"))
	assert.False(t, f.svc.VerifyPassword(hash, "s3cret"))
	assert.False(t, f.svc.VerifyPassword("", "s3cret!"))
	assert.False(t, f.svc.VerifyPassword("not-a-hash", "s3cret!"))

	again, err := f.svc.HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes are salted")
}

func TestPassword_LongInputTruncated(t *testing.T) {
	f := newFixture(t)

	long := strings.Repeat("x", 100)
	hash, err := f.svc.HashPassword(long)
	require.NoError(t, err)
	assert.True(t, f.svc.VerifyPassword(hash, long))
	assert.True(t, f.svc.VerifyPassword(hash, strings.Repeat("x", 72)))
}

func TestNewService_CostFallback(t *testing.T) {
	svc := NewService(nil, common.AuthConfig{BcryptCost: 99}, common.NewSilentLogger())
	assert.Equal(t, 10, svc.cost)
	assert.Equal(t, 30*time.Minute, svc.ResetExpiry())
}

func TestResetToken_ValidThenExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueResetToken(f.user)
	require.NoError(t, err)

	got, err := f.svc.VerifyResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	f.advance(29 * time.Minute)
	_, err = f.svc.VerifyResetToken(ctx, token)
	assert.NoError(t, err)

	f.advance(2 * time.Minute)
	_, err = f.svc.VerifyResetToken(ctx, token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestResetToken_AnyAlteredCharacterIsInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueResetToken(f.user)
	require.NoError(t, err)

	for i := range token {
		if token[i] == '.' {
			continue
		}
		replacement := byte('A')
		if token[i] == 'A' {
			replacement = 'B'
		}
		altered := token[:i] + string(replacement) + token[i+1:]

		_, err := f.svc.VerifyResetToken(ctx, altered)
		assert.ErrorIs(t, err, models.ErrInvalidToken, "altered position %d", i)
	}
}

func TestResetToken_SingleUseAfterPasswordChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueResetToken(f.user)
	require.NoError(t, err)

	hash, err := f.svc.HashPassword("brand-new")
	require.NoError(t, err)
	f.user.PasswordHash = hash
	require.NoError(t, f.store.UpdateUser(ctx, f.user))

	_, err = f.svc.VerifyResetToken(ctx, token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestResetToken_DeletedUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	token, err := f.svc.IssueResetToken(f.user)
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteUser(ctx, f.user.ID))

	_, err = f.svc.VerifyResetToken(ctx, token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestResetToken_MalformedInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []string{"", "abc", "a.b.c", "...", strings.Repeat("z", 500), "eyJhbGciOiJIUzI1NiJ9.e30."} {
		assert.NotPanics(t, func() {
			_, err := f.svc.VerifyResetToken(ctx, in)
			assert.ErrorIs(t, err, models.ErrInvalidToken, "input %q", in)
		})
	}
}

func TestResetToken_SessionTokenNotAccepted(t *testing.T) {
	f := newFixture(t)

	session, _, err := f.svc.IssueSessionToken(f.user, false)
	require.NoError(t, err)

	_, err = f.svc.VerifyResetToken(context.Background(), session)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestSessionToken_RoundTrip(t *testing.T) {
	f := newFixture(t)

	token, exp, err := f.svc.IssueSessionToken(f.user, false)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(12*time.Hour), exp)

	id, err := f.svc.ParseSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	f.advance(13 * time.Hour)
	_, err = f.svc.ParseSessionToken(token)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestSessionToken_Remember(t *testing.T) {
	f := newFixture(t)

	token, exp, err := f.svc.IssueSessionToken(f.user, true)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(720*time.Hour), exp)

	f.advance(13 * time.Hour)
	id, err := f.svc.ParseSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestSessionToken_ResetTokenNotAccepted(t *testing.T) {
	f := newFixture(t)

	reset, err := f.svc.IssueResetToken(f.user)
	require.NoError(t, err)

	_, err = f.svc.ParseSessionToken(reset)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}
