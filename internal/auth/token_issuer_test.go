package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPrincipal() Principal {
	return Principal{
		UID:         "uid-1",
		Email:       "student@example.com",
		DisplayName: "Test Student",
		PhotoURL:    "https://example.com/avatar.png",
	}
}

func TestIssueAndValidateSessionTokenRoundTrip(t *testing.T) {
	clock := func() time.Time { return time.Unix(1700000000, 0) }
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "campushub-auth",
		Audience:      "campushub-api",
		TokenTTL:      15 * time.Minute,
		Clock:         clock,
	})

	token, expiresIn, err := issuer.IssueSessionToken(context.Background(), testPrincipal())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if expiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiry seconds %d", expiresIn)
	}

	principal, err := issuer.ValidateSessionToken(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if principal != testPrincipal() {
		t.Fatalf("principal round trip mismatch: %+v", principal)
	}
}

func TestValidateSessionTokenRejectsExpired(t *testing.T) {
	issueClock := func() time.Time { return time.Unix(1700000000, 0) }
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "campushub-auth",
		Audience:      "campushub-api",
		TokenTTL:      time.Minute,
		Clock:         issueClock,
	})
	token, _, err := issuer.IssueSessionToken(context.Background(), testPrincipal())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	lateClock := func() time.Time { return time.Unix(1700000000, 0).Add(2 * time.Minute) }
	validator := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "campushub-auth",
		Audience:      "campushub-api",
		Clock:         lateClock,
	})
	if _, err := validator.ValidateSessionToken(token); !errors.Is(err, ErrSessionTokenExpired) {
		t.Fatalf("expected expired token error, got %v", err)
	}
}

func TestValidateSessionTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "campushub-auth",
		Audience:      "campushub-api",
	})
	token, _, err := issuer.IssueSessionToken(context.Background(), testPrincipal())
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	other := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("different"),
		Issuer:        "campushub-auth",
		Audience:      "campushub-api",
	})
	if _, err := other.ValidateSessionToken(token); !errors.Is(err, ErrInvalidSessionToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}
}

func TestIssueSessionTokenRequiresPrincipal(t *testing.T) {
	issuer := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("secret"),
		Issuer:        "campushub-auth",
		Audience:      "campushub-api",
	})
	if _, _, err := issuer.IssueSessionToken(context.Background(), Principal{}); !errors.Is(err, errMissingSubjectClaim) {
		t.Fatalf("expected missing subject error, got %v", err)
	}
}
