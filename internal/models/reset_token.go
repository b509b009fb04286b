package models

import "time"

// PasswordResetToken is stored hashed; the raw token only travels in the
// recovery email.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash []byte
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}
