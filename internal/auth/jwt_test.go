package auth

import (
	"testing"
	"time"
)

func TestIssuer_RoundTrip(t *testing.T) {
	i := NewIssuer("0123456789abcdef-secret", time.Hour)
	tok, err := i.GenerateToken("u1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	uid, err := i.ParseToken(tok)
	if err != nil || uid != "u1" {
		t.Fatalf("ParseToken = %q, %v", uid, err)
	}
}

func TestIssuer_RejectsExpiredAndForeignTokens(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	i := NewIssuer("0123456789abcdef-secret", time.Minute)
	i.Now = func() time.Time { return now }

	tok, err := i.GenerateToken("u1")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	i.Now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, err := i.ParseToken(tok); err != ErrInvalidToken {
		t.Fatalf("expired token: want ErrInvalidToken, got %v", err)
	}

	other := NewIssuer("another-secret-of-16+", time.Hour)
	other.Now = func() time.Time { return now }
	i.Now = func() time.Time { return now }
	if _, err := other.ParseToken(tok); err != ErrInvalidToken {
		t.Fatalf("foreign secret: want ErrInvalidToken, got %v", err)
	}
	if _, err := i.ParseToken("not.a.token"); err != ErrInvalidToken {
		t.Fatalf("garbage: want ErrInvalidToken, got %v", err)
	}
}

func TestIssuer_EmptyUser(t *testing.T) {
	i := NewIssuer("0123456789abcdef-secret", time.Hour)
	if _, err := i.GenerateToken("  "); err != ErrNoIdentity {
		t.Fatalf("want ErrNoIdentity, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		tok string
		ok  bool
	}{
		"Bearer abc":   {"abc", true},
		"bearer  abc ": {"abc", true},
		"Basic abc":    {"", false},
		"Bearer ":      {"", false},
		"":             {"", false},
	}
	for in, want := range cases {
		tok, ok := BearerToken(in)
		if tok != want.tok || ok != want.ok {
			t.Fatalf("BearerToken(%q) = %q,%v; want %q,%v", in, tok, ok, want.tok, want.ok)
		}
	}
}
