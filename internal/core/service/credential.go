package service

import (
	"context"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// CredentialService owns users and their password hashes.
type CredentialService struct {
	users          UserRepository
	sessions       *SessionService
	minPasswordLen int
	now            func() time.Time
}

// CredentialConfig holds the password policy.
type CredentialConfig struct {
	// MinPasswordLength in runes (default 8).
	MinPasswordLength int
}

// NewCredentialService creates a new CredentialService. sessions may be nil,
// in which case RemoveUser leaves session cleanup to expiry.
func NewCredentialService(users UserRepository, sessions *SessionService, cfg CredentialConfig) *CredentialService {
	if cfg.MinPasswordLength <= 0 {
		cfg.MinPasswordLength = domain.DefaultMinPasswordLength
	}
	return &CredentialService{
		users:          users,
		sessions:       sessions,
		minPasswordLen: cfg.MinPasswordLength,
		now:            time.Now,
	}
}

// CreateUserRequest contains parameters for user creation.
type CreateUserRequest struct {
	Email    string
	Password string
	IsAdmin  bool
}

// CreateUser registers a new user.
//
// Fails with ErrInvalidEmail, ErrWeakPassword or ErrDuplicateEmail.
func (s *CredentialService) CreateUser(ctx context.Context, req *CreateUserRequest) (*domain.User, error) {
	email, err := domain.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(req.Password, s.minPasswordLen); err != nil {
		return nil, err
	}

	hash, err := domain.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := domain.NewUser(email, hash, req.IsAdmin, s.now())
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyCredentials returns the user for a matching email and password.
//
// Unknown email and wrong password both yield ErrInvalidCredentials, and
// both cost one argon2id evaluation.
func (s *CredentialService) VerifyCredentials(ctx context.Context, email, password string) (*domain.User, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		domain.BurnPasswordCheck(password)
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, normalized)
	if err != nil {
		if domain.IsStoreFailure(err) {
			return nil, err
		}
		domain.BurnPasswordCheck(password)
		return nil, domain.ErrInvalidCredentials
	}

	if !domain.VerifyPassword(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// ChangePassword replaces the user's password hash. Existing sessions of the
// user are revoked.
func (s *CredentialService) ChangePassword(ctx context.Context, userID, password string) error {
	if err := domain.ValidatePassword(password, s.minPasswordLen); err != nil {
		return err
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := domain.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now().UnixMilli()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}
	if s.sessions != nil {
		if _, err := s.sessions.InvalidateAll(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// RemoveUser deletes the user, its permissions and its sessions.
func (s *CredentialService) RemoveUser(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	if s.sessions != nil {
		if _, err := s.sessions.InvalidateAll(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// GetUser returns a user by ID.
func (s *CredentialService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetUser(ctx, id)
}

// GetUserByEmail returns a user by (unnormalized) email.
func (s *CredentialService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	return s.users.GetUserByEmail(ctx, normalized)
}

// ListUsers returns every user ordered by creation time.
func (s *CredentialService) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListUsers(ctx)
}
