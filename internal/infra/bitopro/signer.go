package bitopro

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"bitodash/internal/infra"
)

// Signer produces BitoPro authentication headers.
//
// The exchange distinguishes two payload families:
//   - GET/DELETE requests sign a base64-encoded JSON object containing the
//     account email ("identity") and a millisecond nonce.
//   - Requests with a body sign the base64-encoded JSON body itself; the
//     body must already carry a millisecond "timestamp" field.
//
// The signature is hex-encoded HMAC-SHA384 over the payload.
type Signer struct {
	apiKey    string
	apiSecret string
	email     string
	clock     infra.Clock
}

// NewSigner creates a new Signer instance. The clock is injectable so the
// nonce, and therefore the signature, is deterministic under test.
func NewSigner(apiKey, apiSecret, email string, clock infra.Clock) *Signer {
	if clock == nil {
		clock = infra.RealClock{}
	}
	return &Signer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		email:     email,
		clock:     clock,
	}
}

// GetHeaders builds auth headers for a request without a body.
func (s *Signer) GetHeaders() map[string]string {
	nonce := s.clock.Now().UnixMilli()
	payload := base64.StdEncoding.EncodeToString(
		[]byte(fmt.Sprintf(`{"identity":%q,"nonce":%d}`, s.email, nonce)),
	)
	return s.headers(payload)
}

// BodyHeaders builds auth headers for a request whose JSON body is sent
// verbatim. The caller is responsible for including the timestamp field.
func (s *Signer) BodyHeaders(body []byte) map[string]string {
	payload := base64.StdEncoding.EncodeToString(body)
	return s.headers(payload)
}

// SignedBody serializes v to JSON and returns body bytes plus matching
// headers, so what is signed is byte-identical to what is sent.
func (s *Signer) SignedBody(v interface{}) ([]byte, map[string]string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return body, s.BodyHeaders(body), nil
}

// Nonce returns the current millisecond timestamp from the injected clock.
func (s *Signer) Nonce() int64 {
	return s.clock.Now().UnixMilli()
}

func (s *Signer) headers(payload string) map[string]string {
	sign := computeHmacSha384(payload, s.apiSecret)
	return map[string]string{
		"X-BITOPRO-APIKEY":    s.apiKey,
		"X-BITOPRO-PAYLOAD":   payload,
		"X-BITOPRO-SIGNATURE": sign,
	}
}

func computeHmacSha384(message string, secret string) string {
	h := hmac.New(sha512.New384, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
