// Package token provides token generation and validation utilities.
//
// Session tokens are 32 bytes from crypto/rand, Base64 RawURL encoded.
// Only the hex SHA-256 of a token is ever stored, and every comparison is
// constant time. Sign and VerifySignature produce the HMAC used for
// stateless CSRF tokens.
package token
