package security

// Reset tokens reuse the refresh-token scheme: random bytes travel raw in
// the email link, only the sha256 digest is stored.

func GenerateResetToken() (string, []byte, error) {
	return GenerateRefreshToken(48)
}

func HashResetToken(token string) []byte {
	return HashRefreshToken(token)
}
