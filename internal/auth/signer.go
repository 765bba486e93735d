package auth

import (
	"encoding/hex"

	"github.com/golang-jwt/jwt/v5"
)

// Signer computes and checks HMAC-SHA256 signatures with a server-held secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Sign returns the lowercase hex MAC of data.
func (s *Signer) Sign(data string) string {
	sig, err := jwt.SigningMethodHS256.Sign(data, s.secret)
	if err != nil {
		// Only reachable with a non-[]byte key or an unlinked hash, both ruled out by NewSigner.
		panic("auth: hmac sign: " + err.Error())
	}
	return hex.EncodeToString(sig)
}

// Verify reports whether signature is the canonical hex MAC of data.
// The MAC comparison runs in constant time.
func (s *Signer) Verify(data, signature string) bool {
	raw, err := hex.DecodeString(signature)
	if err != nil || hex.EncodeToString(raw) != signature {
		return false
	}
	return jwt.SigningMethodHS256.Verify(data, raw, s.secret) == nil
}
