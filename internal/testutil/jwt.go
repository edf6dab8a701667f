// ABOUTME: Signed JWT helpers for tests that need realistic credentials
// ABOUTME: Tokens are HS256 with a fixed test secret; the client never verifies them

package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Secret signs every test token
const Secret = "propdesk-test-secret"

// MintToken returns a signed token for subject expiring at exp
func MintToken(t testing.TB, subject string, exp time.Time) string {
	t.Helper()
	return MintTokenWithClaims(t, jwt.MapClaims{
		"sub": subject,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
}

// MintTokenWithClaims signs arbitrary claims
func MintTokenWithClaims(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(Secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

// ExpiredToken returns a token whose exp is an hour in the past
func ExpiredToken(t testing.TB, subject string) string {
	t.Helper()
	return MintToken(t, subject, time.Now().Add(-time.Hour))
}
