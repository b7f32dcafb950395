package client

import (
	"fmt"
	"os"
	"rodeo/communication"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
)

// TokenSource yields the bearer token for the next request. An empty token means
// the agent is not signed in.
type TokenSource func() (string, error)

// StaticToken always returns the same token.
func StaticToken(token string) TokenSource {
	return func() (string, error) {
		return strings.TrimSpace(token), nil
	}
}

// FileToken re-reads the token file on every request so that an external sign-in
// can refresh it without restarting the daemon. A missing file means signed out.
func FileToken(path string) TokenSource {
	return func() (string, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return "", nil
			}
			return "", fmt.Errorf("read token file: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
}

// checkToken classifies a token before it is sent. Opaque (non-JWT) tokens are
// passed through and left to the server to judge.
func checkToken(token string, now time.Time) error {
	if token == "" {
		return communication.ErrAuthMissing
	}
	parser := jwt.Parser{}
	parsed, _, err := parser.ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	if !claims.VerifyExpiresAt(now.Unix(), false) {
		return communication.ErrAuthExpired
	}
	return nil
}
