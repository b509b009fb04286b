package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"prismfx/internal/config"
	"prismfx/internal/ids"
	"prismfx/internal/mailer"
	"prismfx/internal/models"
	"prismfx/internal/repository"
	"prismfx/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserSuspended      = errors.New("user suspended")
	ErrResetTokenInvalid  = errors.New("reset token invalid or expired")
)

// Store interfaces cover the repository slices the service depends on.
type userStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
}

type sessionStore interface {
	Create(ctx context.Context, session models.Session) error
	CountByUser(ctx context.Context, userID string) (int, error)
	DeleteOldestSessions(ctx context.Context, userID string, keepLatest int) error
	FindByRefreshHash(ctx context.Context, userID string, refreshHash []byte) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByDevice(ctx context.Context, userID string, deviceID string) error
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
}

type resetTokenStore interface {
	Create(ctx context.Context, token models.PasswordResetToken) error
	FindValidByHash(ctx context.Context, tokenHash []byte) (models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string) error
	InvalidateByUser(ctx context.Context, userID string) error
}

type cooldownStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
	Release(ctx context.Context, key string) error
}

type AuthService struct {
	users       userStore
	sessions    sessionStore
	resetTokens resetTokenStore
	cooldowns   cooldownStore
	mail        mailer.Mailer
	cfg         *config.AppConfig
	log         zerolog.Logger
}

func NewAuthService(
	users userStore,
	sessions sessionStore,
	resetTokens resetTokenStore,
	cooldowns cooldownStore,
	mail mailer.Mailer,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:       users,
		sessions:    sessions,
		resetTokens: resetTokens,
		cooldowns:   cooldowns,
		mail:        mail,
		cfg:         cfg,
		log:         log,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
	DeviceID     string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email and password required")
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, fmt.Errorf("email already registered")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		Role:         models.UserRoleUser,
		Status:       models.UserStatusActive,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return AuthResult{}, err
	}

	deviceID := ids.New()
	_, tokens, err := s.createSession(ctx, user, deviceID, "New Device", "", "")
	if err != nil {
		return AuthResult{}, err
	}

	return tokens, nil
}

type LoginInput struct {
	Email      string
	Password   string
	DeviceID   string
	DeviceName string
	IPAddress  string
	UserAgent  string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	deviceID := input.DeviceID
	if deviceID == "" {
		deviceID = ids.New()
	}
	deviceName := input.DeviceName
	if deviceName == "" {
		deviceName = "Unknown Device"
	}

	_, tokens, err := s.createSession(ctx, user, deviceID, deviceName, input.IPAddress, input.UserAgent)
	if err != nil {
		return AuthResult{}, err
	}
	return tokens, nil
}

func (s *AuthService) createSession(
	ctx context.Context,
	user models.User,
	deviceID string,
	deviceName string,
	ipAddress string,
	userAgent string,
) (models.Session, AuthResult, error) {
	refreshToken, refreshHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return models.Session{}, AuthResult{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		DeviceID:         deviceID,
		DeviceName:       deviceName,
		RefreshTokenHash: refreshHash,
		IPAddress:        ipAddress,
		UserAgent:        userAgent,
		ExpiresAt:        time.Now().Add(s.cfg.Security.JWTRefreshTTL),
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		session.ID,
		deviceID,
		string(user.Role),
		nil,
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return models.Session{}, AuthResult{}, err
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return models.Session{}, AuthResult{}, err
	}

	if err := s.enforceSessionLimit(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("enforce session limit failed")
	}

	return session, AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		DeviceID:     deviceID,
	}, nil
}

func (s *AuthService) enforceSessionLimit(ctx context.Context, userID string) error {
	count, err := s.sessions.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if count <= s.cfg.Security.MaxSessions {
		return nil
	}

	return s.sessions.DeleteOldestSessions(ctx, userID, s.cfg.Security.MaxSessions)
}

type RefreshInput struct {
	UserID       string
	RefreshToken string
	DeviceID     string
}

func (s *AuthService) Refresh(ctx context.Context, input RefreshInput) (AuthResult, error) {
	user, err := s.users.GetByID(ctx, input.UserID)
	if err != nil {
		return AuthResult{}, err
	}
	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	refreshHash := security.HashRefreshToken(input.RefreshToken)
	session, err := s.sessions.FindByRefreshHash(ctx, input.UserID, refreshHash)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.DeviceID != input.DeviceID {
		return AuthResult{}, ErrInvalidCredentials
	}

	if session.ExpiresAt.Before(time.Now()) {
		_ = s.sessions.DeleteByID(ctx, session.ID)
		return AuthResult{}, ErrInvalidCredentials
	}

	refreshToken, newHash, err := security.GenerateRefreshToken(64)
	if err != nil {
		return AuthResult{}, err
	}

	session.RefreshTokenHash = newHash
	session.ExpiresAt = time.Now().Add(s.cfg.Security.JWTRefreshTTL)

	if err := s.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, err
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTAccessSecret,
		user.ID,
		session.ID,
		session.DeviceID,
		string(user.Role),
		nil,
		s.cfg.Security.JWTAccessTTL,
	)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
		DeviceID:     session.DeviceID,
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, userID string, deviceID string) error {
	return s.sessions.DeleteByDevice(ctx, userID, deviceID)
}

// ForgotResult reports whether a mail was (re)sent and, when the cooldown
// blocked it, how long until resend becomes available.
type ForgotResult struct {
	Sent       bool
	RetryAfter time.Duration
}

// ForgotPassword issues a reset token and mails the link. A redis TTL key
// enforces the resend cooldown per email; until it expires, repeat requests
// report the remaining wait instead of sending. Unknown addresses get the
// same response as known ones. Server-side failures free the window again
// so the user is not locked out by an error that was not theirs.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (ForgotResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ForgotResult{}, fmt.Errorf("email required")
	}

	key := "pwreset:cooldown:" + email
	ok, remaining, err := s.cooldowns.Acquire(ctx, key, s.cfg.Security.ResendCooldown)
	if err != nil {
		return ForgotResult{}, fmt.Errorf("cooldown check: %w", err)
	}
	if !ok {
		return ForgotResult{Sent: false, RetryAfter: remaining}, nil
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Indistinguishable from the sent case; the cooldown was still
			// consumed above.
			return ForgotResult{Sent: true}, nil
		}
		s.releaseCooldown(ctx, key)
		return ForgotResult{}, err
	}

	if err := s.resetTokens.InvalidateByUser(ctx, user.ID); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("invalidate old reset tokens failed")
	}

	token, tokenHash, err := security.GenerateResetToken()
	if err != nil {
		s.releaseCooldown(ctx, key)
		return ForgotResult{}, err
	}

	record := models.PasswordResetToken{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(s.cfg.Security.ResetTokenTTL),
	}
	if err := s.resetTokens.Create(ctx, record); err != nil {
		s.releaseCooldown(ctx, key)
		return ForgotResult{}, err
	}

	resetURL := mailer.ResetURL(s.cfg.Security.ResetURLBase, token)
	if err := s.mail.SendPasswordReset(ctx, email, resetURL); err != nil {
		s.releaseCooldown(ctx, key)
		return ForgotResult{}, fmt.Errorf("send reset mail: %w", err)
	}

	return ForgotResult{Sent: true}, nil
}

func (s *AuthService) releaseCooldown(ctx context.Context, key string) {
	if err := s.cooldowns.Release(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("release resend cooldown failed")
	}
}

// ResetPassword consumes a valid token, sets the new password, and revokes
// every session so stolen refresh tokens die with the old password.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("password too short")
	}

	record, err := s.resetTokens.FindValidByHash(ctx, security.HashResetToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			return ErrResetTokenInvalid
		}
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, record.UserID, passwordHash); err != nil {
		return err
	}

	if err := s.resetTokens.MarkUsed(ctx, record.ID); err != nil {
		s.log.Warn().Err(err).Str("token_id", record.ID).Msg("mark reset token used failed")
	}

	sessions, err := s.sessions.ListByUser(ctx, record.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", record.UserID).Msg("list sessions after reset failed")
		return nil
	}
	for _, session := range sessions {
		if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("revoke session after reset failed")
		}
	}

	return nil
}
