package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "pw" {
		t.Fatal("password stored in clear")
	}
	if !CheckPassword(hash, "pw") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "nope") {
		t.Error("wrong password accepted")
	}

	// salted: same input, different hash
	other, _ := HashPassword("pw")
	if other == hash {
		t.Error("expected salted hashes to differ")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	ts := NewTokenService(secret, time.Hour)

	tok, err := ts.Issue("uid-1", "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	c, err := ts.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Email != "a@x.com" || c.UserID != "uid-1" {
		t.Errorf("claims mismatch: %+v", c)
	}
	if !c.ExpiresAt.After(c.IssuedAt.Time) {
		t.Error("expires_at must be after issued_at")
	}
}

func TestExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	now := issuedAt
	ts := NewTokenService(secret, time.Hour).WithClock(func() time.Time { return now })

	tok, err := ts.Issue("uid", "a@x.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = issuedAt.Add(59 * time.Minute)
	if _, err := ts.Verify(tok); err != nil {
		t.Fatalf("expected token valid at T+59m: %v", err)
	}

	now = issuedAt.Add(61 * time.Minute)
	_, err = ts.Verify(tok)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected Expired at T+61m, got %v", err)
	}

	now = issuedAt.Add(time.Hour)
	if _, err := ts.Verify(tok); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected Expired exactly at expiry, got %v", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	ts := NewTokenService(secret, time.Hour)
	good, _ := ts.Issue("uid", "a@x.com")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Email: "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noneTok, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	noExp := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Email: "a@x.com"})
	noExpTok, _ := noExp.SignedString([]byte(secret))

	tests := []struct {
		name string
		tok  string
		ts   *TokenService
		want error
	}{
		{"empty", "", ts, ErrMissingToken},
		{"garbage", "not.a.token", ts, ErrMalformed},
		{"wrong secret", good, NewTokenService("other", time.Hour), ErrMalformed},
		{"alg none", noneTok, ts, ErrMalformed},
		{"missing exp", noExpTok, ts, ErrMalformed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.ts.Verify(tt.tok)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}
