// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package zerotrust

import (
	"testing"
	"time"
)

func TestTokenIssuer_IssueValidate_RoundTrips(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)

	token, err := issuer.Issue("session1", "user1", "high")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.SessionID != "session1" || claims.UserID != "user1" || claims.SecurityLevel != "high" {
		t.Errorf("claims = %+v, unexpected contents", claims)
	}
}

func TestTokenIssuer_Validate_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)
	token, _ := issuer.Issue("session1", "user1", "high")

	other := NewTokenIssuer([]byte("different-secret"), time.Hour)
	if _, err := other.Validate(token); err == nil {
		t.Fatal("expected error validating with wrong secret, got nil")
	}
}

func TestTokenIssuer_Validate_RejectsExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), -time.Second)
	token, err := issuer.Issue("session1", "user1", "high")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := issuer.Validate(token); err == nil {
		t.Fatal("expected error validating expired token, got nil")
	}
}

func TestTokenIssuer_Validate_RejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Hour)
	if _, err := issuer.Validate("not-a-jwt"); err == nil {
		t.Fatal("expected error validating malformed token, got nil")
	}
}
