package service

import (
	"context"
	"errors"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// SessionConfig holds session lifetime settings.
type SessionConfig struct {
	// IdleTimeout ends a session that has not been resolved for this long.
	IdleTimeout time.Duration

	// MaxLifetime caps a session regardless of activity (0 = no cap).
	MaxLifetime time.Duration
}

// DefaultSessionConfig returns two weeks of idle time and no absolute cap.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{IdleTimeout: 14 * 24 * time.Hour}
}

// SessionService issues, resolves and revokes login sessions.
type SessionService struct {
	repo  SessionRepository
	users UserRepository
	cfg   SessionConfig
	now   func() time.Time
}

// NewSessionService creates a new SessionService.
func NewSessionService(repo SessionRepository, users UserRepository, cfg SessionConfig) *SessionService {
	return &SessionService{
		repo:  repo,
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

// CreateSessionRequest contains parameters for session creation.
type CreateSessionRequest struct {
	UserID    string // Required
	ClientIP  string
	UserAgent string
}

// CreateSessionResponse contains the result of session creation.
type CreateSessionResponse struct {
	Token   string          // Plaintext token, only returned here
	Session *domain.Session // Stored record
}

// CreateSession starts a session for an authenticated user.
func (s *SessionService) CreateSession(ctx context.Context, req *CreateSessionRequest) (*CreateSessionResponse, error) {
	if req.UserID == "" {
		return nil, domain.ErrBadRequest.WithDetails("user_id is required")
	}

	plaintext, hash, err := domain.GenerateToken()
	if err != nil {
		return nil, err
	}

	session, err := domain.NewSession(req.UserID, hash, s.now())
	if err != nil {
		return nil, err
	}
	session.IPAddress = req.ClientIP
	session.UserAgent = req.UserAgent
	session.SetMaxLifetime(s.cfg.MaxLifetime)
	if err := session.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &CreateSessionResponse{Token: plaintext, Session: session}, nil
}

// Resolution is a resolved session and its owner.
type Resolution struct {
	Session *domain.Session
	User    *domain.User
}

// Resolve maps a token to its user and slides the idle deadline.
//
// Fails with ErrInvalidToken for malformed or unknown tokens and for sessions
// whose user was removed, ErrExpiredToken for expired sessions, and with a
// store error when the backend fails.
func (s *SessionService) Resolve(ctx context.Context, token string) (*Resolution, error) {
	if !domain.ValidateTokenFormat(token) {
		return nil, domain.ErrInvalidToken
	}
	hash := domain.HashToken(token)

	session, err := s.repo.TouchSession(ctx, hash, s.now(), s.cfg.IdleTimeout)
	if err != nil {
		return nil, err
	}
	if !domain.VerifyTokenHash(token, session.TokenHash) {
		return nil, domain.ErrInvalidToken
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Orphaned session; the user is gone for good.
			_, _ = s.repo.DeleteSession(ctx, hash)
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}

	return &Resolution{Session: session, User: user}, nil
}

// Invalidate ends the session for token. Unknown or malformed tokens are a
// no-op, so calling it twice is safe.
func (s *SessionService) Invalidate(ctx context.Context, token string) error {
	if !domain.ValidateTokenFormat(token) {
		return nil
	}
	_, err := s.repo.DeleteSession(ctx, domain.HashToken(token))
	return err
}

// InvalidateAll ends every session of a user and returns how many were removed.
func (s *SessionService) InvalidateAll(ctx context.Context, userID string) (int, error) {
	return s.repo.DeleteSessionsByUser(ctx, userID)
}

// CollectExpired removes sessions that expired by now.
func (s *SessionService) CollectExpired(ctx context.Context) (int, error) {
	return s.repo.DeleteExpiredSessions(ctx, s.now(), s.cfg.IdleTimeout)
}

// Count returns the number of stored sessions, expired or not.
func (s *SessionService) Count(ctx context.Context) (int, error) {
	return s.repo.CountSessions(ctx)
}

// RunGC calls CollectExpired every interval until ctx is done. onRun, when
// set, receives each result.
func (s *SessionService) RunGC(ctx context.Context, interval time.Duration, onRun func(removed int, err error)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CollectExpired(ctx)
			if onRun != nil {
				onRun(n, err)
			}
		}
	}
}
