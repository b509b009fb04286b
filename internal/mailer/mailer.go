// Package mailer delivers account-recovery email. The concrete transport is
// deployment-specific; the development implementation logs the reset link.
package mailer

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
)

type Mailer interface {
	SendPasswordReset(ctx context.Context, email, resetURL string) error
}

// ResetURL builds the link embedded in the recovery email.
func ResetURL(base, token string) string {
	return fmt.Sprintf("%s?token=%s", base, url.QueryEscape(token))
}

// LogMailer writes the mail to the log instead of sending it.
type LogMailer struct {
	log zerolog.Logger
}

func NewLogMailer(log zerolog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendPasswordReset(ctx context.Context, email, resetURL string) error {
	m.log.Info().
		Str("to", email).
		Str("reset_url", resetURL).
		Msg("password reset mail (log transport)")
	return nil
}
