package domain

import (
	"encoding/base64"
	"encoding/binary"
	"time"

	"github.com/nguyendn/wwwhisper/pkg/token"
)

const (
	csrfNonceLen = 16
	csrfMACLen   = 32
	csrfRawLen   = csrfNonceLen + 8 + csrfMACLen

	// DefaultCSRFTTL is used when no lifetime is configured.
	DefaultCSRFTTL = time.Hour
)

// IssueCSRFToken returns a token bound to binding (a session ID or an
// anonymous cookie value) that expires at now+ttl.
//
// The token is stateless: nonce || expiry || HMAC(key, nonce, expiry, binding).
func IssueCSRFToken(key []byte, binding string, now time.Time, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultCSRFTTL
	}
	nonce, err := token.GenerateBytes(csrfNonceLen)
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	var exp [8]byte
	binary.BigEndian.PutUint64(exp[:], uint64(now.Add(ttl).Unix()))

	raw := make([]byte, 0, csrfRawLen)
	raw = append(raw, nonce...)
	raw = append(raw, exp[:]...)
	raw = append(raw, token.Sign(key, nonce, exp[:], []byte(binding))...)
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// VerifyCSRFToken checks that tok was issued under key for binding and has
// not expired. All failures are ErrCSRFInvalid.
func VerifyCSRFToken(key []byte, tok, binding string, now time.Time) error {
	if tok == "" || binding == "" {
		return ErrCSRFInvalid
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil || len(raw) != csrfRawLen {
		return ErrCSRFInvalid
	}
	nonce := raw[:csrfNonceLen]
	exp := raw[csrfNonceLen : csrfNonceLen+8]
	mac := raw[csrfNonceLen+8:]

	if !token.VerifySignature(key, mac, nonce, exp, []byte(binding)) {
		return ErrCSRFInvalid
	}
	if now.Unix() >= int64(binary.BigEndian.Uint64(exp)) {
		return ErrCSRFInvalid.WithDetails("expired")
	}
	return nil
}
