package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxEmailLength bounds the stored address (RFC 5321 path limit).
const MaxEmailLength = 254

// URNPrefix prefixes resource IDs in the JSON API.
const URNPrefix = "urn:uuid:"

// User is a person who can log in to the protected site.
type User struct {
	// ID is a lower-case UUID.
	ID string `json:"id"`

	// Email is trimmed and lower-cased; unique across users.
	Email string `json:"email"`

	// PasswordHash is an argon2id PHC string. Never serialized to clients.
	PasswordHash string `json:"password_hash"`

	// IsAdmin grants access to every registered location and the admin API.
	IsAdmin bool `json:"is_admin"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewUser builds a user with a fresh ID. The email must already be normalized.
func NewUser(email, passwordHash string, isAdmin bool, now time.Time) *User {
	ms := now.UnixMilli()
	return &User{
		ID:           NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    ms,
		UpdatedAt:    ms,
	}
}

// Clone creates a copy of the user.
func (u *User) Clone() *User {
	clone := *u
	return &clone
}

// NormalizeEmail trims, lower-cases and validates an address.
// Display names ("Alice <a@example.com>") are rejected.
func NormalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > MaxEmailLength {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", ErrInvalidEmail.WithDetails(raw)
	}
	return email, nil
}

// NewID returns a new lower-case UUID for users and locations.
func NewID() string {
	return uuid.NewString()
}

// ParseID accepts a bare UUID or urn:uuid:<uuid> and returns the bare,
// lower-case form.
func ParseID(raw string) (string, bool) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), URNPrefix)
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// URN renders an ID as urn:uuid:<uuid>.
func URN(id string) string {
	return URNPrefix + id
}
