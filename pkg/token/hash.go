package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Hash computes the hex encoded SHA-256 hash of a token.
func Hash(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Verify verifies a token against an expected hash.
//
// Uses constant-time comparison to prevent timing attacks.
func Verify(token, expectedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(token)), []byte(expectedHash)) == 1
}

// Sign returns the HMAC-SHA256 of the concatenated parts under key.
// Parts are length-prefixed so ("ab","c") and ("a","bc") sign differently.
func Sign(key []byte, parts ...[]byte) []byte {
	mac := hmac.New(sha256.New, key)
	var l [4]byte
	for _, p := range parts {
		n := len(p)
		l[0], l[1], l[2], l[3] = byte(n>>24), byte(n>>16), byte(n>>8), byte(n)
		mac.Write(l[:])
		mac.Write(p)
	}
	return mac.Sum(nil)
}

// VerifySignature checks sig against Sign(key, parts...) in constant time.
func VerifySignature(key, sig []byte, parts ...[]byte) bool {
	return hmac.Equal(sig, Sign(key, parts...))
}
