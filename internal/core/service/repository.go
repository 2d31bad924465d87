package service

import (
	"context"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// UserRepository persists users.
//
// Email uniqueness is enforced by the repository: CreateUser returns
// domain.ErrDuplicateEmail when the normalized address is taken.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error

	// DeleteUser removes the user and every permission that references it
	// in the same atomic step.
	DeleteUser(ctx context.Context, id string) error

	// ListUsers returns users ordered by creation time.
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// LocationRepository persists locations and the permission relation.
type LocationRepository interface {
	// CreateLocation assigns location.Seq and stores it. The normalized path
	// is unique: a second insert returns domain.ErrDuplicateLocation.
	CreateLocation(ctx context.Context, location *domain.Location) error
	GetLocation(ctx context.Context, id string) (*domain.Location, error)
	UpdateLocation(ctx context.Context, location *domain.Location) error

	// DeleteLocation removes the location and its permissions atomically.
	DeleteLocation(ctx context.Context, id string) error

	// ListLocations returns all locations ordered by Seq.
	ListLocations(ctx context.Context) ([]*domain.Location, error)

	// FindLocationsByPath returns the locations whose path is one of paths,
	// in any order.
	FindLocationsByPath(ctx context.Context, paths []string) ([]*domain.Location, error)

	// Grant is idempotent. It fails with ErrLocationNotFound or
	// ErrUserNotFound when either side is missing.
	Grant(ctx context.Context, locationID, userID string) error

	// Revoke fails with ErrPermissionNotFound when no grant exists.
	Revoke(ctx context.Context, locationID, userID string) error

	HasPermission(ctx context.Context, locationID, userID string) (bool, error)

	// AllowedUsers returns the IDs of users granted the location.
	AllowedUsers(ctx context.Context, locationID string) ([]string, error)
}

// SessionRepository persists sessions keyed by token hash.
type SessionRepository interface {
	CreateSession(ctx context.Context, session *domain.Session) error

	// TouchSession atomically loads the session for tokenHash, checks it
	// against idle and its absolute cap, and advances LastSeen to now.
	// Unknown hashes fail with ErrInvalidToken. Expired sessions are deleted
	// and fail with ErrExpiredToken. A concurrent DeleteSession either
	// happens entirely before (touch fails) or entirely after.
	TouchSession(ctx context.Context, tokenHash string, now time.Time, idle time.Duration) (*domain.Session, error)

	// DeleteSession reports whether a session was removed.
	DeleteSession(ctx context.Context, tokenHash string) (bool, error)

	DeleteSessionsByUser(ctx context.Context, userID string) (int, error)

	// DeleteExpiredSessions removes every session expired at now.
	DeleteExpiredSessions(ctx context.Context, now time.Time, idle time.Duration) (int, error)

	CountSessions(ctx context.Context) (int, error)
}

// Store is a complete storage backend.
type Store interface {
	UserRepository
	LocationRepository
	SessionRepository

	// Ping reports whether the backend can serve requests.
	Ping(ctx context.Context) error
	Close() error
}
