// Package service provides the domain services of wwwhisper.
//
// Services hold the business rules and talk to storage only through the
// repository interfaces declared in repository.go, so every backend
// (memory, badger, sql) is interchangeable and tests can use fakes.
//
// This package contains:
//
//   - CredentialService: users and their argon2id password hashes
//   - LocationService: protected locations and per-user grants
//   - SessionService: session tokens with sliding expiration
//   - Authorizer: the I/O shell around domain.Decide
//   - RateLimiterRegistry, IPAllowlist, CSRFService: request guards used by
//     the HTTP layer
//
// Services are safe for concurrent use.
package service
