package domain

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/nguyendn/wwwhisper/pkg/token"
)

// Token constants.
const (
	// TokenPrefix is the prefix for session tokens carried in the cookie.
	TokenPrefix = "wwtk_"

	// TokenHashPrefix is the prefix for stored token hashes.
	TokenHashPrefix = "wwth_"

	// TokenBytesLength is the number of random bytes for token generation.
	TokenBytesLength = 32

	// TokenBodyLength is the Base64 RawURL encoded length (32 bytes -> 43 chars).
	TokenBodyLength = 43

	// TokenLength is the total token length (prefix + body).
	TokenLength = len(TokenPrefix) + TokenBodyLength

	// TokenHashLength is the total token hash length (prefix + hex SHA-256).
	TokenHashLength = len(TokenHashPrefix) + 64
)

// GenerateToken generates a session token from 256 bits of CSPRNG output.
// Returns the plaintext token (wwtk_...) and its hash (wwth_...).
//
// Only the hash is ever persisted. The plaintext leaves the process once,
// in the Set-Cookie header of the login response.
func GenerateToken() (plaintext string, hash string, err error) {
	body, err := token.GenerateWithLength(TokenBytesLength)
	if err != nil {
		return "", "", ErrInternal.WithCause(err)
	}
	plaintext = TokenPrefix + body
	return plaintext, HashToken(plaintext), nil
}

// HashToken computes the storage key for a token: wwth_{hex_sha256}.
func HashToken(plaintext string) string {
	return TokenHashPrefix + token.Hash(plaintext)
}

// VerifyTokenHash compares a plaintext token with a stored hash in constant time.
func VerifyTokenHash(plaintext, storedHash string) bool {
	computed := HashToken(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}

// ValidateTokenFormat reports whether s looks like a token this service issued.
// Malformed cookies are rejected before any store access.
func ValidateTokenFormat(s string) bool {
	if len(s) != TokenLength || !strings.HasPrefix(s, TokenPrefix) {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s[len(TokenPrefix):])
	return err == nil
}

// ValidateTokenHashFormat checks if a string has valid token hash format.
func ValidateTokenHashFormat(hash string) bool {
	if len(hash) != TokenHashLength || !strings.HasPrefix(hash, TokenHashPrefix) {
		return false
	}
	_, err := hex.DecodeString(hash[len(TokenHashPrefix):])
	return err == nil
}

// MaskToken masks a token for safe logging.
// Example: wwtk_ABC...xyz
func MaskToken(s string) string {
	if !strings.HasPrefix(s, TokenPrefix) || len(s) < len(TokenPrefix)+7 {
		return "***REDACTED***"
	}
	body := s[len(TokenPrefix):]
	return TokenPrefix + body[:3] + "..." + body[len(body)-3:]
}
