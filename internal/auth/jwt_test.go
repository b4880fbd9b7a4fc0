package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "jwt-test-secret"

func TestGenerateAccessToken_RoundTrip(t *testing.T) {
	token, err := GenerateAccessToken(testSecret, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("expected user-1, got %q", claims.UserID)
	}
	if claims.TokenType != "access" {
		t.Errorf("expected access token type, got %q", claims.TokenType)
	}
}

func TestGenerateRefreshToken_CarriesTokenID(t *testing.T) {
	token, err := GenerateRefreshToken(testSecret, "user-1", "tid-42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := ValidateToken(testSecret, token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.TokenType != "refresh" {
		t.Errorf("expected refresh token type, got %q", claims.TokenType)
	}
	if claims.TokenID != "tid-42" {
		t.Errorf("expected token id tid-42, got %q", claims.TokenID)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := GenerateAccessToken(testSecret, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ValidateToken("different-secret", token); err == nil {
		t.Error("expected validation to fail with wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	claims := &Claims{
		UserID:    "user-1",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ValidateToken(testSecret, token); err == nil {
		t.Error("expected validation to fail for expired token")
	}
}

func TestValidateToken_RejectsUnexpectedAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "user-1", TokenType: "access"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ValidateToken(testSecret, signed); err == nil {
		t.Error("expected validation to reject alg=none token")
	}
}
