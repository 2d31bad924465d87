package service

import (
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// CSRFService issues and checks CSRF tokens signed with the server secret.
type CSRFService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewCSRFService creates a CSRFService. A non-positive ttl uses
// domain.DefaultCSRFTTL.
func NewCSRFService(secret []byte, ttl time.Duration) *CSRFService {
	if ttl <= 0 {
		ttl = domain.DefaultCSRFTTL
	}
	return &CSRFService{key: secret, ttl: ttl, now: time.Now}
}

// Issue returns a fresh token bound to binding (a session ID or the
// anonymous cookie value).
func (s *CSRFService) Issue(binding string) (string, error) {
	return domain.IssueCSRFToken(s.key, binding, s.now(), s.ttl)
}

// Verify fails with ErrCSRFInvalid unless token was issued for binding and
// has not expired.
func (s *CSRFService) Verify(token, binding string) error {
	return domain.VerifyCSRFToken(s.key, token, binding, s.now())
}
