package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prismfx/internal/config"
	"prismfx/internal/models"
	"prismfx/internal/repository"
	"prismfx/internal/security"
)

type fakeUserStore struct {
	byEmail map[string]models.User
	byID    map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail: make(map[string]models.User),
		byID:    make(map[string]models.User),
	}
}

func (f *fakeUserStore) add(user models.User) {
	f.byEmail[user.Email] = user
	f.byID[user.ID] = user
}

func (f *fakeUserStore) Create(ctx context.Context, user models.User) error {
	f.add(user)
	return nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (models.User, error) {
	user, ok := f.byEmail[email]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) UpdatePassword(ctx context.Context, id string, passwordHash []byte) error {
	user, ok := f.byID[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	f.add(user)
	return nil
}

type fakeSessionStore struct {
	sessions map[string]models.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]models.Session)}
}

func (f *fakeSessionStore) Create(ctx context.Context, session models.Session) error {
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) CountByUser(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, session := range f.sessions {
		if session.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeSessionStore) DeleteOldestSessions(ctx context.Context, userID string, keepLatest int) error {
	return nil
}

func (f *fakeSessionStore) FindByRefreshHash(ctx context.Context, userID string, refreshHash []byte) (models.Session, error) {
	for _, session := range f.sessions {
		if session.UserID == userID && bytes.Equal(session.RefreshTokenHash, refreshHash) {
			return session, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (f *fakeSessionStore) DeleteByID(ctx context.Context, id string) error {
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionStore) DeleteByDevice(ctx context.Context, userID string, deviceID string) error {
	for id, session := range f.sessions {
		if session.UserID == userID && session.DeviceID == deviceID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionStore) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	var out []models.Session
	for _, session := range f.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	return out, nil
}

type fakeResetTokenStore struct {
	tokens           map[string]models.PasswordResetToken
	created          []models.PasswordResetToken
	markedUsed       []string
	invalidatedUsers []string
}

func newFakeResetTokenStore() *fakeResetTokenStore {
	return &fakeResetTokenStore{tokens: make(map[string]models.PasswordResetToken)}
}

func (f *fakeResetTokenStore) Create(ctx context.Context, token models.PasswordResetToken) error {
	f.tokens[token.ID] = token
	f.created = append(f.created, token)
	return nil
}

func (f *fakeResetTokenStore) FindValidByHash(ctx context.Context, tokenHash []byte) (models.PasswordResetToken, error) {
	for _, token := range f.tokens {
		if bytes.Equal(token.TokenHash, tokenHash) && token.UsedAt == nil {
			return token, nil
		}
	}
	return models.PasswordResetToken{}, repository.ErrResetTokenNotFound
}

func (f *fakeResetTokenStore) MarkUsed(ctx context.Context, id string) error {
	token, ok := f.tokens[id]
	if !ok {
		return repository.ErrResetTokenNotFound
	}
	now := time.Now()
	token.UsedAt = &now
	f.tokens[id] = token
	f.markedUsed = append(f.markedUsed, id)
	return nil
}

func (f *fakeResetTokenStore) InvalidateByUser(ctx context.Context, userID string) error {
	f.invalidatedUsers = append(f.invalidatedUsers, userID)
	return nil
}

type fakeCooldowns struct {
	held     map[string]time.Duration
	acquired []string
	released []string
}

func newFakeCooldowns() *fakeCooldowns {
	return &fakeCooldowns{held: make(map[string]time.Duration)}
}

func (f *fakeCooldowns) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	if remaining, ok := f.held[key]; ok {
		return false, remaining, nil
	}
	f.held[key] = ttl
	f.acquired = append(f.acquired, key)
	return true, 0, nil
}

func (f *fakeCooldowns) Release(ctx context.Context, key string) error {
	delete(f.held, key)
	f.released = append(f.released, key)
	return nil
}

type fakeMailer struct {
	sent []string
	err  error
}

func (f *fakeMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

type authFixture struct {
	svc       *AuthService
	users     *fakeUserStore
	sessions  *fakeSessionStore
	resets    *fakeResetTokenStore
	cooldowns *fakeCooldowns
	mail      *fakeMailer
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	cfg := &config.AppConfig{
		Security: config.SecurityConfig{
			JWTAccessSecret: "access-secret",
			JWTAccessTTL:    15 * time.Minute,
			JWTRefreshTTL:   time.Hour,
			MaxSessions:     5,
			ResetTokenTTL:   30 * time.Minute,
			ResendCooldown:  60 * time.Second,
			ResetURLBase:    "https://prismfx.app/reset-password",
		},
	}

	f := &authFixture{
		users:     newFakeUserStore(),
		sessions:  newFakeSessionStore(),
		resets:    newFakeResetTokenStore(),
		cooldowns: newFakeCooldowns(),
		mail:      &fakeMailer{},
	}
	f.svc = NewAuthService(f.users, f.sessions, f.resets, f.cooldowns, f.mail, cfg, zerolog.Nop())
	return f
}

func seedUser(t *testing.T, f *authFixture, email, password string) models.User {
	t.Helper()

	hash, err := security.HashPassword(password)
	require.NoError(t, err)

	user := models.User{
		ID:           "u1",
		Email:        email,
		PasswordHash: hash,
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
	}
	f.users.add(user)
	return user
}

func TestForgotPasswordSendsMailAndConsumesCooldown(t *testing.T) {
	f := newAuthFixture(t)
	seedUser(t, f, "ada@example.com", "old password")

	result, err := f.svc.ForgotPassword(context.Background(), "Ada@Example.com ")

	require.NoError(t, err)
	assert.True(t, result.Sent)
	assert.Equal(t, []string{"ada@example.com"}, f.mail.sent)
	require.Len(t, f.resets.created, 1)
	assert.Contains(t, f.cooldowns.acquired, "pwreset:cooldown:ada@example.com")
	assert.Empty(t, f.cooldowns.released)
}

func TestForgotPasswordBlockedDuringCooldown(t *testing.T) {
	f := newAuthFixture(t)
	seedUser(t, f, "ada@example.com", "old password")
	f.cooldowns.held["pwreset:cooldown:ada@example.com"] = 42 * time.Second

	result, err := f.svc.ForgotPassword(context.Background(), "ada@example.com")

	require.NoError(t, err)
	assert.False(t, result.Sent)
	assert.Equal(t, 42*time.Second, result.RetryAfter)
	assert.Empty(t, f.mail.sent)
	assert.Empty(t, f.resets.created)
}

func TestForgotPasswordReleasesCooldownWhenMailFails(t *testing.T) {
	// A transport failure is the server's fault; the 60 second window must
	// not stay burned or the user waits out a cooldown for nothing.
	f := newAuthFixture(t)
	seedUser(t, f, "ada@example.com", "old password")
	f.mail.err = errors.New("smtp down")

	_, err := f.svc.ForgotPassword(context.Background(), "ada@example.com")

	require.Error(t, err)
	assert.Contains(t, f.cooldowns.released, "pwreset:cooldown:ada@example.com")
	assert.NotContains(t, f.cooldowns.held, "pwreset:cooldown:ada@example.com")
}

func TestForgotPasswordUnknownEmailLooksSent(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.svc.ForgotPassword(context.Background(), "ghost@example.com")

	require.NoError(t, err)
	assert.True(t, result.Sent)
	assert.Empty(t, f.mail.sent)
	// The window stays consumed so probing cannot distinguish addresses.
	assert.Contains(t, f.cooldowns.held, "pwreset:cooldown:ghost@example.com")
	assert.Empty(t, f.cooldowns.released)
}

func TestResetPasswordUpdatesHashAndRevokesSessions(t *testing.T) {
	f := newAuthFixture(t)
	user := seedUser(t, f, "ada@example.com", "old password")

	token, tokenHash, err := security.GenerateResetToken()
	require.NoError(t, err)
	f.resets.tokens["t1"] = models.PasswordResetToken{
		ID:        "t1",
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	f.sessions.sessions["s1"] = models.Session{ID: "s1", UserID: user.ID, DeviceID: "d1"}
	f.sessions.sessions["s2"] = models.Session{ID: "s2", UserID: user.ID, DeviceID: "d2"}

	require.NoError(t, f.svc.ResetPassword(context.Background(), token, "new password"))

	updated, err := f.users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	ok, err := security.VerifyPassword("new password", updated.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Contains(t, f.resets.markedUsed, "t1")
	assert.Empty(t, f.sessions.sessions)
}

func TestResetPasswordRejectsUnknownToken(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.ResetPassword(context.Background(), "bogus-token", "new password")

	assert.ErrorIs(t, err, ErrResetTokenInvalid)
}

func TestLoginVerifiesPassword(t *testing.T) {
	f := newAuthFixture(t)
	seedUser(t, f, "ada@example.com", "correct password")

	result, err := f.svc.Login(context.Background(), LoginInput{
		Email:    "ada@example.com",
		Password: "correct password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "u1", result.User.ID)

	_, err = f.svc.Login(context.Background(), LoginInput{
		Email:    "ada@example.com",
		Password: "wrong password",
	})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
