package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func setSecret(t *testing.T, value string) {
	t.Helper()
	t.Setenv("GXP_AUTH_SECRET", value)
	ResetSecretCache()
	t.Cleanup(ResetSecretCache)
}

func TestGenerateAndValidateToken(t *testing.T) {
	setSecret(t, "test-secret")

	token, err := GenerateToken("user-42", 30*time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Issuer != issuer {
		t.Fatalf("unexpected issuer: %s", claims.Issuer)
	}
	if claims.SessionID() == "" {
		t.Fatal("expected a session id (jti)")
	}

	// Each token gets its own session id.
	second, err := GenerateToken("user-42", 30*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	other, err := ParseAndValidate(second)
	if err != nil {
		t.Fatal(err)
	}
	if other.SessionID() == claims.SessionID() {
		t.Fatal("session ids must differ per token")
	}
}

func TestGenerateTokenValidation(t *testing.T) {
	setSecret(t, "test-secret")
	if _, err := GenerateToken("  ", time.Minute); err == nil {
		t.Fatal("blank user id should fail")
	}
	if _, err := GenerateToken("user-1", 0); err == nil {
		t.Fatal("zero ttl should fail")
	}
}

func TestMissingSecret(t *testing.T) {
	setSecret(t, "")
	if _, err := GenerateToken("user-1", time.Minute); err == nil {
		t.Fatal("expected error without configured secret")
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	setSecret(t, "test-secret")

	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
	}
	for _, tc := range cases {
		if _, err := ParseAndValidate(tc.token); err != ErrInvalidToken {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", tc.name, err)
		}
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	setSecret(t, "test-secret")
	now := time.Now().UTC()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
		ID:        "sess-old",
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAndValidate(signed); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	setSecret(t, "test-secret")
	token, err := GenerateToken("user-1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	setSecret(t, "another-secret")
	if _, err := ParseAndValidate(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	setSecret(t, "test-secret")
	now := time.Now().UTC()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		ID:        "sess-x",
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseAndValidate(signed); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}
