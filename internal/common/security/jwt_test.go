package security

import (
	"testing"
	"time"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	tok, err := issuer.GenerateToken("u1", "admin")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	decoded, err := issuer.Auth().Decode(tok)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	claims, err := decoded.AsMap(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if id, err := GetUserIDFromClaims(claims); err != nil || id != "u1" {
		t.Errorf("user_id = %q, %v", id, err)
	}
	if role, err := GetUserRoleFromClaims(claims); err != nil || role != "admin" {
		t.Errorf("role = %q, %v", role, err)
	}
	if decoded.Subject() != "u1" {
		t.Errorf("sub = %q", decoded.Subject())
	}
}

func TestTokenFromOtherSecretIsRejected(t *testing.T) {
	tok, _ := NewTokenIssuer("one", time.Hour).GenerateToken("u1", "admin")
	if _, err := NewTokenIssuer("two", time.Hour).Auth().Decode(tok); err == nil {
		t.Error("token signed with another secret was accepted")
	}
}

func TestClaimHelpersRejectMissingClaims(t *testing.T) {
	if _, err := GetUserIDFromClaims(map[string]interface{}{"user_id": 5}); err == nil {
		t.Error("non-string user_id accepted")
	}
	if _, err := GetUserRoleFromClaims(map[string]interface{}{}); err == nil {
		t.Error("missing role accepted")
	}
}
