package realtime

import (
	"testing"
	"time"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", "mpt-telemetry")

	tokenString, err := svc.GenerateToken("user-42", "viewer", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := svc.ValidateToken(tokenString)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user-42" {
		t.Errorf("UserID = %q, want user-42", claims.UserID)
	}
	if claims.Role != "viewer" {
		t.Errorf("Role = %q, want viewer", claims.Role)
	}
	if claims.TokenID == "" {
		t.Error("TokenID is empty")
	}
	if claims.Issuer != "mpt-telemetry" {
		t.Errorf("Issuer = %q, want mpt-telemetry", claims.Issuer)
	}
}

func TestTokenService_RejectsWrongSecret(t *testing.T) {
	issued := NewTokenService("secret-a", "mpt-telemetry")
	verifier := NewTokenService("secret-b", "mpt-telemetry")

	tokenString, err := issued.GenerateToken("user-42", "viewer", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := verifier.ValidateToken(tokenString); err == nil {
		t.Fatal("token signed with a different secret validated")
	}
}

func TestTokenService_RejectsExpired(t *testing.T) {
	svc := NewTokenService("test-secret", "mpt-telemetry")

	tokenString, err := svc.GenerateToken("user-42", "viewer", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.ValidateToken(tokenString); err == nil {
		t.Fatal("expired token validated")
	}
}

func TestTokenService_RejectsGarbage(t *testing.T) {
	svc := NewTokenService("test-secret", "mpt-telemetry")
	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Fatal("garbage token validated")
	}
}
