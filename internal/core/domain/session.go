package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session constraints.
const (
	MaxIPAddressLength = 45 // IPv6 max length
	MaxUserAgentLength = 512

	// SessionIDPrefix is the prefix for session IDs.
	SessionIDPrefix = "wwss-"
)

// Session is the server-side record behind a session cookie.
//
// The plaintext token is never part of the record. Lookups go through
// TokenHash, and UserID is a weak reference: the user may be removed while
// the session still exists, in which case resolving it fails.
type Session struct {
	// ID is the unique identifier for the session.
	// Format: wwss-{ulid_lowercase}, 31 characters total.
	ID string `json:"id"`

	// UserID identifies the user who owns this session.
	UserID string `json:"user_id"`

	// TokenHash is the SHA-256 hash of the session token (wwth_...).
	TokenHash string `json:"token_hash"`

	// IPAddress is the client IP at login.
	IPAddress string `json:"ip_address"`

	// UserAgent is the client user agent at login.
	UserAgent string `json:"user_agent"`

	// CreatedAt is the session creation timestamp (Unix milliseconds).
	CreatedAt int64 `json:"created_at"`

	// LastSeen is refreshed on every successful resolve (Unix milliseconds).
	LastSeen int64 `json:"last_seen"`

	// ExpiresAt is an optional absolute cap (Unix milliseconds, 0 = none).
	ExpiresAt int64 `json:"expires_at"`
}

// NewSession creates a new Session with a generated ID.
func NewSession(userID, tokenHash string, now time.Time) (*Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}
	ms := now.UnixMilli()
	return &Session{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: ms,
		LastSeen:  ms,
	}, nil
}

// GenerateSessionID generates a new session ID using ULID.
func GenerateSessionID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", ErrInternal.WithCause(err)
	}
	return SessionIDPrefix + strings.ToLower(id.String()), nil
}

// ExpiredAt reports whether the session is no longer usable at now, either
// because it has been idle longer than idle or because it passed ExpiresAt.
// A non-positive idle disables the idle check.
func (s *Session) ExpiredAt(now time.Time, idle time.Duration) bool {
	ms := now.UnixMilli()
	if s.ExpiresAt > 0 && ms >= s.ExpiresAt {
		return true
	}
	if idle > 0 && ms-s.LastSeen >= idle.Milliseconds() {
		return true
	}
	return false
}

// SetMaxLifetime caps the session at CreatedAt + lifetime. Zero removes the cap.
func (s *Session) SetMaxLifetime(lifetime time.Duration) {
	if lifetime <= 0 {
		s.ExpiresAt = 0
		return
	}
	s.ExpiresAt = s.CreatedAt + lifetime.Milliseconds()
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	if ms := now.UnixMilli(); ms > s.LastSeen {
		s.LastSeen = ms
	}
}

// Validate trims client metadata to the stored limits and checks required
// fields.
func (s *Session) Validate() error {
	if s.UserID == "" {
		return ErrBadRequest.WithDetails("session user_id is required")
	}
	if !ValidateTokenHashFormat(s.TokenHash) {
		return ErrBadRequest.WithDetails("session token hash is malformed")
	}
	if len(s.IPAddress) > MaxIPAddressLength {
		s.IPAddress = s.IPAddress[:MaxIPAddressLength]
	}
	if len(s.UserAgent) > MaxUserAgentLength {
		s.UserAgent = s.UserAgent[:MaxUserAgentLength]
	}
	return nil
}

// Clone creates a copy of the session.
func (s *Session) Clone() *Session {
	clone := *s
	return &clone
}

// LastSeenTime returns LastSeen as time.Time.
func (s *Session) LastSeenTime() time.Time {
	return time.UnixMilli(s.LastSeen)
}

// CreatedAtTime returns CreatedAt as time.Time.
func (s *Session) CreatedAtTime() time.Time {
	return time.UnixMilli(s.CreatedAt)
}
