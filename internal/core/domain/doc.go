// Package domain defines the core domain models for wwwhisper.
//
// Domain models are plain values without IO dependencies:
//
//   - User, password hashing (argon2id) and email normalization
//   - Location, path normalization and prefix matching
//   - Session and the opaque session token
//   - CSRF tokens (HMAC, bound to a session or an anonymous cookie)
//   - Decide, the pure authorization rule set
//   - DomainError and the error code catalog
package domain
