package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"nakula/pkg/core"
)

// Signer is the authentication collaborator for signed requests. It produces
// the request signature over the canonical parameter string and exposes the
// API key sent in the auth header.
type Signer interface {
	// Sign returns the signature for the encoded parameter string.
	Sign(payload string) string
	// APIKey returns the public API key identifier.
	APIKey() string
}

// HMACSigner signs requests with HMAC-SHA256 over the query string, the
// scheme used by the spot API.
type HMACSigner struct {
	apiKey string
	secret string
}

// NewHMACSigner creates a signer from the given credentials.
func NewHMACSigner(creds core.Credentials) *HMACSigner {
	return &HMACSigner{
		apiKey: creds.APIKey,
		secret: creds.SecretKey,
	}
}

// Sign returns the hex-encoded HMAC-SHA256 of the payload.
func (s *HMACSigner) Sign(payload string) string {
	h := hmac.New(sha256.New, []byte(s.secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// APIKey returns the public API key identifier.
func (s *HMACSigner) APIKey() string {
	return s.apiKey
}
