package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	token, err := tokens.Issue(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	userID, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected user 42, got %d", userID)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)

	for _, bad := range []string{"", "not-a-token", "a.b.c"} {
		if _, err := tokens.Verify(bad); err != ErrInvalidToken {
			t.Errorf("token %q: expected ErrInvalidToken, got %v", bad, err)
		}
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewTokens("secret-one", time.Hour)
	verifier := NewTokens("secret-two", time.Hour)

	token, err := issuer.Issue(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := verifier.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	tokens := &Tokens{secret: []byte("test-secret"), ttl: -time.Minute}

	token, err := tokens.Issue(42)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := tokens.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestNewTokensDefaultTTL(t *testing.T) {
	tokens := NewTokens("s", 0)
	if tokens.ttl != 30*time.Minute {
		t.Fatalf("expected 30m default ttl, got %v", tokens.ttl)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if hash == "correct horse" {
		t.Fatal("hash must not equal the password")
	}

	if !CheckPassword(hash, "correct horse") {
		t.Fatal("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("wrong password accepted")
	}
	if CheckPassword("not-a-hash", "correct horse") {
		t.Fatal("invalid hash accepted")
	}
}
