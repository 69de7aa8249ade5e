package oauth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signAssertion(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("failed to sign test assertion: %v", err)
	}
	return signed
}

func googleClaims() Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://accounts.google.com",
			Audience:  jwt.ClaimStrings{"client-123"},
			Subject:   "google-user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email:         "user@example.com",
		EmailVerified: true,
		Name:          "Test User",
	}
}

func TestVerify(t *testing.T) {
	v := NewVerifier(GoogleProvider("client-123"))

	claims, err := v.Verify("google", signAssertion(t, googleClaims()))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Email != "user@example.com" {
		t.Errorf("Email = %q, want user@example.com", claims.Email)
	}
	if claims.Name != "Test User" {
		t.Errorf("Name = %q, want Test User", claims.Name)
	}
}

func TestVerify_AlternateIssuer(t *testing.T) {
	v := NewVerifier(GoogleProvider("client-123"))

	c := googleClaims()
	c.Issuer = "accounts.google.com"
	if _, err := v.Verify("google", signAssertion(t, c)); err != nil {
		t.Errorf("Verify with alternate issuer failed: %v", err)
	}
}

func TestVerify_Failures(t *testing.T) {
	v := NewVerifier(GoogleProvider("client-123"))

	tests := []struct {
		name   string
		mutate func(*Claims)
		want   string
	}{
		{
			name:   "wrong issuer",
			mutate: func(c *Claims) { c.Issuer = "https://evil.example.com" },
			want:   "invalid issuer",
		},
		{
			name:   "wrong audience",
			mutate: func(c *Claims) { c.Audience = jwt.ClaimStrings{"other-client"} },
			want:   "invalid audience",
		},
		{
			name:   "expired",
			mutate: func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) },
			want:   "expired",
		},
		{
			name:   "missing email",
			mutate: func(c *Claims) { c.Email = "" },
			want:   "no email claim",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := googleClaims()
			tt.mutate(&c)
			_, err := v.Verify("google", signAssertion(t, c))
			if err == nil {
				t.Fatal("Verify should fail")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestVerify_UnknownProvider(t *testing.T) {
	v := NewVerifier(GoogleProvider("client-123"))

	_, err := v.Verify("github", signAssertion(t, googleClaims()))
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("error = %v, want ErrUnknownProvider", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	v := NewVerifier(GoogleProvider("client-123"))

	if _, err := v.Verify("google", "not-a-jwt"); err == nil {
		t.Error("Verify should reject a malformed assertion")
	}
}
