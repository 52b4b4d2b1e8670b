package steam

import (
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// maxDirectCodeLen is the auth-secret length heuristic: anything this short
// is a one-time code typed by an operator, anything longer is a TOTP seed.
const maxDirectCodeLen = 5

// GuardCodeAt derives the 6-digit TOTP code for the given shared seed at t.
func GuardCodeAt(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCode(secret, t)
	if err != nil {
		return "", fmt.Errorf("steam: derive guard code: %w", err)
	}
	return code, nil
}

// GuardCode derives the current 6-digit TOTP code for the shared seed.
func GuardCode(secret string) (string, error) {
	return GuardCodeAt(secret, time.Now())
}

// ApplyAuthSecret fills the credentials' second-factor field from authSecret:
// short values are passed through as a direct one-time code, longer values
// are treated as a TOTP seed. An empty secret leaves creds untouched.
func ApplyAuthSecret(creds *Credentials, authSecret string) error {
	if authSecret == "" {
		return nil
	}
	if len(authSecret) <= maxDirectCodeLen {
		creds.AuthCode = authSecret
		return nil
	}
	code, err := GuardCode(authSecret)
	if err != nil {
		return err
	}
	creds.TwoFactorCode = code
	return nil
}
