// Package token issues and verifies capability tokens that bind a resource
// identifier to the process secret.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrEmptySecret is returned when an Authority is built without a secret.
var ErrEmptySecret = errors.New("token: secret must not be empty")

// Authority issues HMAC-SHA256 tokens. Tokens never expire; they stay valid
// for as long as the secret does.
type Authority struct {
	secret []byte
}

// NewAuthority constructs an Authority keyed with secret.
func NewAuthority(secret string) (*Authority, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Authority{secret: []byte(secret)}, nil
}

// Issue returns the token for resourceID.
func (a *Authority) Issue(resourceID string) string {
	return hex.EncodeToString(a.sum(resourceID))
}

// Verify reports whether tok was issued for exactly resourceID.
func (a *Authority) Verify(tok, resourceID string) bool {
	raw, err := hex.DecodeString(tok)
	if err != nil {
		return false
	}
	return hmac.Equal(raw, a.sum(resourceID))
}

func (a *Authority) sum(resourceID string) []byte {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(resourceID))
	return mac.Sum(nil)
}
