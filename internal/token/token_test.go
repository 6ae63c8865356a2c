package token

import (
	"errors"
	"testing"
)

func newAuthority(t *testing.T, secret string) *Authority {
	t.Helper()
	a, err := NewAuthority(secret)
	if err != nil {
		t.Fatalf("NewAuthority: %v", err)
	}
	return a
}

func TestVerifyScopesToResource(t *testing.T) {
	a := newAuthority(t, "s3cret")

	tok := a.Issue("short:123")
	if !a.Verify(tok, "short:123") {
		t.Fatal("expected token to verify for its own resource")
	}
	if a.Verify(tok, "short:999") {
		t.Fatal("expected token to be rejected for another resource")
	}
	if a.Verify(tok, "short:12") {
		t.Fatal("expected prefix of the resource to be rejected")
	}
}

func TestIssueIsDeterministic(t *testing.T) {
	a := newAuthority(t, "s3cret")
	if a.Issue("u1") != a.Issue("u1") {
		t.Fatal("expected identical tokens for identical input")
	}
}

func TestVerifyRejectsOtherSecret(t *testing.T) {
	a := newAuthority(t, "one")
	b := newAuthority(t, "two")
	if b.Verify(a.Issue("u1"), "u1") {
		t.Fatal("expected token from another secret to be rejected")
	}
}

func TestVerifyRejectsMalformedToken(t *testing.T) {
	a := newAuthority(t, "s3cret")
	for _, tok := range []string{"", "zz", "not-hex!"} {
		if a.Verify(tok, "u1") {
			t.Fatalf("expected malformed token %q to be rejected", tok)
		}
	}
}

func TestNewAuthorityRequiresSecret(t *testing.T) {
	if _, err := NewAuthority(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret got %v", err)
	}
}
