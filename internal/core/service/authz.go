package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// AdminSet is the set of emails configured as site admins in addition to
// users carrying the IsAdmin flag. It is swapped atomically on reload.
type AdminSet struct {
	emails atomic.Pointer[map[string]struct{}]
}

// NewAdminSet creates an AdminSet holding emails.
func NewAdminSet(emails []string) *AdminSet {
	s := &AdminSet{}
	s.Replace(emails)
	return s
}

// Replace swaps in a new list. Entries that are not valid addresses are
// ignored.
func (s *AdminSet) Replace(emails []string) {
	m := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n, err := domain.NormalizeEmail(e); err == nil {
			m[n] = struct{}{}
		}
	}
	s.emails.Store(&m)
}

// Contains reports whether email is a configured admin.
func (s *AdminSet) Contains(email string) bool {
	if s == nil {
		return false
	}
	m := s.emails.Load()
	if m == nil {
		return false
	}
	_, ok := (*m)[strings.ToLower(email)]
	return ok
}

// IsAdmin reports whether u is an admin by flag or by configuration.
func (s *AdminSet) IsAdmin(u *domain.User) bool {
	return u != nil && (u.IsAdmin || s.Contains(u.Email))
}

// AuthorizerConfig holds configuration for Authorizer.
type AuthorizerConfig struct {
	// Timeout bounds every store call made for one decision (default 2s).
	Timeout time.Duration

	// OnDecision, when set, is called once per decision with its latency.
	OnDecision func(res domain.Result, elapsed time.Duration)
}

// Authorizer decides whether a session may visit a path. It gathers state
// from the stores and hands it to domain.Decide.
type Authorizer struct {
	sessions  *SessionService
	locations *LocationService
	admins    *AdminSet
	cfg       AuthorizerConfig
}

// NewAuthorizer creates a new Authorizer.
func NewAuthorizer(sessions *SessionService, locations *LocationService, admins *AdminSet, cfg AuthorizerConfig) *Authorizer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Authorizer{
		sessions:  sessions,
		locations: locations,
		admins:    admins,
		cfg:       cfg,
	}
}

// Authorize returns the decision for token visiting path.
//
// An empty, unknown or expired token yields UNAUTHENTICATED. A store failure
// at any step yields DENIED.
func (a *Authorizer) Authorize(ctx context.Context, token, path string) domain.Result {
	start := time.Now()
	res := a.authorize(ctx, token, path)
	if a.cfg.OnDecision != nil {
		a.cfg.OnDecision(res, time.Since(start))
	}
	return res
}

// Resolve maps a session token to its owner with the same timeout and
// failure mapping as Authorize. It returns nil, nil for a missing, invalid
// or expired token.
func (a *Authorizer) Resolve(ctx context.Context, token string) (*Resolution, error) {
	if token == "" {
		return nil, nil
	}
	sctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	r, err := a.sessions.Resolve(sctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidToken) || errors.Is(err, domain.ErrExpiredToken) {
			return nil, nil
		}
		return nil, domain.StoreError("resolve session", err)
	}
	return r, nil
}

// IsAdmin reports whether u is an admin by flag or by configuration.
func (a *Authorizer) IsAdmin(u *domain.User) bool {
	return a.admins.IsAdmin(u)
}

func (a *Authorizer) authorize(ctx context.Context, token, path string) domain.Result {
	if token == "" {
		return domain.Result{Decision: domain.DecisionUnauthenticated, Reason: domain.ReasonNoSession}
	}

	r, err := a.Resolve(ctx, token)
	if err != nil {
		logger.L(ctx).Warn("authorization failed closed", "step", "resolve", "error", err)
		return domain.Deny(domain.ReasonStoreError, nil)
	}
	if r == nil {
		return domain.Result{Decision: domain.DecisionUnauthenticated, Reason: domain.ReasonInvalidSession}
	}
	user := r.User

	lctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	matches, err := a.locations.FindMatchingLocations(lctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPath) {
			return domain.Deny(domain.ReasonInvalidPath, user)
		}
		logger.L(ctx).Warn("authorization failed closed", "step", "locations", "path", path, "error", err)
		return domain.Deny(domain.ReasonStoreError, user)
	}

	in := domain.DecisionInput{
		User:    user,
		Admin:   a.admins.IsAdmin(user),
		Matches: matches,
	}

	// The permission lookup only matters when nothing else already decided.
	if len(matches) > 0 && !matches[0].OpenAccess && !in.Admin {
		granted, err := a.locations.HasPermission(lctx, matches[0].ID, user.ID)
		if err != nil {
			logger.L(ctx).Warn("authorization failed closed", "step", "permission",
				"location", matches[0].Path, "error", err)
			return domain.Deny(domain.ReasonStoreError, user)
		}
		in.Granted = granted
	}

	return domain.Decide(in)
}
