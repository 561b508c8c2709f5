// Package authtest builds bearer tokens for tests.
package authtest

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

const signingKey = "authtest-signing-key"

// Token signs a token whose payload carries subject and scope. scope may be a
// string, a []string, or nil to omit the claim.
func Token(t testing.TB, subject string, scope any) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": jwt.NewNumericDate(time.Now()),
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	if scope != nil {
		claims["scope"] = scope
	}
	return Sign(t, claims)
}

// Sign signs arbitrary claims with HS256.
func Sign(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
