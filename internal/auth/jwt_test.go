package auth

import (
	"errors"
	"testing"
	"time"
)

// TestGenerateAndValidateToken tests the access token round trip
func TestGenerateAndValidateToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	token, err := manager.GenerateAccessToken("operator")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if token == "" {
		t.Fatal("Should generate a non-empty token")
	}

	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.Username != "operator" {
		t.Errorf("Should carry the operator username, got %s", claims.Username)
	}
}

// TestExpiredTokenRejected tests that expired tokens are rejected
func TestExpiredTokenRejected(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)

	token, err := manager.GenerateAccessToken("operator")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	_, err = manager.ValidateAccessToken(token)
	if err == nil {
		t.Fatal("Should reject an expired token")
	}
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("Should return ErrTokenExpired, got %v", err)
	}
}

// TestWrongSecretRejected tests that tokens signed with another secret fail
func TestWrongSecretRejected(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	other := NewJWTManager("other-secret", time.Hour)

	token, err := manager.GenerateAccessToken("operator")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Error("Should reject a token signed with a different secret")
	}
}

// TestPasswordRoundTrip tests bcrypt hashing and verification
func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if err := CheckPassword(hash, "correct horse battery staple"); err != nil {
		t.Errorf("Should accept the original password, got %v", err)
	}
	if err := CheckPassword(hash, "wrong password"); err == nil {
		t.Error("Should reject a wrong password")
	}
}
