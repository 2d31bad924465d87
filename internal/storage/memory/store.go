package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/pkg/cmap"
)

// Store keeps users, locations, permissions and sessions in sharded maps
// with secondary indexes.
type Store struct {
	// Users: ID -> User, plus normalized email -> ID.
	users  *cmap.Map[string, *domain.User]
	emails *cmap.Map[string, string]

	// Locations: ID -> Location, plus normalized path -> ID.
	locations *cmap.Map[string, *domain.Location]
	paths     *cmap.Map[string, string]
	seq       uint64

	// Permissions in both directions.
	grantsByLocation *Index
	grantsByUser     *Index

	// Sessions: TokenHash -> Session, plus UserID -> token hashes.
	sessions     *cmap.Map[string, *domain.Session]
	userSessions *Index

	// Global lock for operations requiring atomicity across indexes.
	// Writers hold it exclusively, so readers never observe a half-applied
	// mutation.
	mu sync.RWMutex

	closed atomic.Bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		users:            cmap.New[string, *domain.User](),
		emails:           cmap.New[string, string](),
		locations:        cmap.New[string, *domain.Location](),
		paths:            cmap.New[string, string](),
		grantsByLocation: NewIndex(),
		grantsByUser:     NewIndex(),
		sessions:         cmap.New[string, *domain.Session](),
		userSessions:     NewIndex(),
	}
}

// Ping reports ErrStoreUnavailable once the store is closed.
func (s *Store) Ping(ctx context.Context) error {
	return s.check(ctx, "ping")
}

// Close marks the store closed. Data is discarded.
func (s *Store) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *Store) check(ctx context.Context, op string) error {
	if s.closed.Load() {
		return domain.ErrStoreUnavailable.WithDetails(op + ": store closed")
	}
	if err := ctx.Err(); err != nil {
		return domain.StoreError(op, err)
	}
	return nil
}

// ============================================================================
// Users
// ============================================================================

// CreateUser stores a new user. Fails with ErrDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := s.check(ctx, "create user"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.emails.SetIfAbsent(user.Email, user.ID) {
		return domain.ErrDuplicateEmail
	}
	s.users.Set(user.ID, user.Clone())
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := s.check(ctx, "get user"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users.Get(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

// GetUserByEmail retrieves a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	if err := s.check(ctx, "get user by email"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails.Get(email)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u, ok := s.users.Get(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

// UpdateUser replaces a stored user, keeping the email index current.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	if err := s.check(ctx, "update user"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users.Get(user.ID)
	if !ok {
		return domain.ErrUserNotFound
	}
	if existing.Email != user.Email {
		if !s.emails.SetIfAbsent(user.Email, user.ID) {
			return domain.ErrDuplicateEmail
		}
		s.emails.Delete(existing.Email)
	}
	s.users.Set(user.ID, user.Clone())
	return nil
}

// DeleteUser removes a user and its permissions.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	if err := s.check(ctx, "delete user"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users.Pop(id)
	if !ok {
		return domain.ErrUserNotFound
	}
	s.emails.Delete(u.Email)
	for _, locID := range s.grantsByUser.Pop(id) {
		s.grantsByLocation.Remove(locID, id)
	}
	return nil
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	if err := s.check(ctx, "list users"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*domain.User, 0, s.users.Count())
	s.users.Range(func(_ string, u *domain.User) bool {
		users = append(users, u.Clone())
		return true
	})
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt != users[j].CreatedAt {
			return users[i].CreatedAt < users[j].CreatedAt
		}
		return users[i].Email < users[j].Email
	})
	return users, nil
}

// ============================================================================
// Locations and permissions
// ============================================================================

// CreateLocation assigns the next Seq and stores the location.
func (s *Store) CreateLocation(ctx context.Context, loc *domain.Location) error {
	if err := s.check(ctx, "create location"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.paths.SetIfAbsent(loc.Path, loc.ID) {
		return domain.ErrDuplicateLocation
	}
	s.seq++
	loc.Seq = s.seq
	s.locations.Set(loc.ID, loc.Clone())
	return nil
}

// GetLocation retrieves a location by ID.
func (s *Store) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	if err := s.check(ctx, "get location"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.locations.Get(id)
	if !ok {
		return nil, domain.ErrLocationNotFound
	}
	return loc.Clone(), nil
}

// UpdateLocation replaces the mutable fields of a location. Path and Seq
// are fixed at creation.
func (s *Store) UpdateLocation(ctx context.Context, loc *domain.Location) error {
	if err := s.check(ctx, "update location"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.locations.Get(loc.ID)
	if !ok {
		return domain.ErrLocationNotFound
	}
	updated := existing.Clone()
	updated.OpenAccess = loc.OpenAccess
	s.locations.Set(loc.ID, updated)
	return nil
}

// DeleteLocation removes a location and its permissions.
func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	if err := s.check(ctx, "delete location"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations.Pop(id)
	if !ok {
		return domain.ErrLocationNotFound
	}
	s.paths.Delete(loc.Path)
	for _, userID := range s.grantsByLocation.Pop(id) {
		s.grantsByUser.Remove(userID, id)
	}
	return nil
}

// ListLocations returns all locations ordered by Seq.
func (s *Store) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	if err := s.check(ctx, "list locations"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	locs := make([]*domain.Location, 0, s.locations.Count())
	s.locations.Range(func(_ string, l *domain.Location) bool {
		locs = append(locs, l.Clone())
		return true
	})
	sort.Slice(locs, func(i, j int) bool { return locs[i].Seq < locs[j].Seq })
	return locs, nil
}

// FindLocationsByPath returns locations whose path is one of paths.
func (s *Store) FindLocationsByPath(ctx context.Context, paths []string) ([]*domain.Location, error) {
	if err := s.check(ctx, "find locations"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var locs []*domain.Location
	for _, p := range paths {
		id, ok := s.paths.Get(p)
		if !ok {
			continue
		}
		if l, ok := s.locations.Get(id); ok {
			locs = append(locs, l.Clone())
		}
	}
	return locs, nil
}

// Grant records a permission. Granting twice is a no-op.
func (s *Store) Grant(ctx context.Context, locationID, userID string) error {
	if err := s.check(ctx, "grant"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.locations.Has(locationID) {
		return domain.ErrLocationNotFound
	}
	if !s.users.Has(userID) {
		return domain.ErrUserNotFound
	}
	s.grantsByLocation.Add(locationID, userID)
	s.grantsByUser.Add(userID, locationID)
	return nil
}

// Revoke removes a permission. Fails with ErrPermissionNotFound.
func (s *Store) Revoke(ctx context.Context, locationID, userID string) error {
	if err := s.check(ctx, "revoke"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.grantsByLocation.Remove(locationID, userID) {
		return domain.ErrPermissionNotFound
	}
	s.grantsByUser.Remove(userID, locationID)
	return nil
}

// HasPermission reports whether userID was granted locationID.
func (s *Store) HasPermission(ctx context.Context, locationID, userID string) (bool, error) {
	if err := s.check(ctx, "has permission"); err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.grantsByLocation.Contains(locationID, userID), nil
}

// AllowedUsers returns the sorted IDs of users granted locationID.
func (s *Store) AllowedUsers(ctx context.Context, locationID string) ([]string, error) {
	if err := s.check(ctx, "allowed users"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.grantsByLocation.Get(locationID)
	sort.Strings(ids)
	return ids, nil
}

// ============================================================================
// Sessions
// ============================================================================

// CreateSession stores a new session keyed by its token hash.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	if err := s.check(ctx, "create session"); err != nil {
		return err
	}
	if err := session.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sessions.SetIfAbsent(session.TokenHash, session.Clone()) {
		return domain.ErrInternal.WithDetails("token hash collision")
	}
	s.userSessions.Add(session.UserID, session.TokenHash)
	return nil
}

// TouchSession checks expiry and slides LastSeen under the write lock, so
// it is linearizable with DeleteSession.
func (s *Store) TouchSession(ctx context.Context, tokenHash string, now time.Time, idle time.Duration) (*domain.Session, error) {
	if err := s.check(ctx, "touch session"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(tokenHash)
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	if session.ExpiredAt(now, idle) {
		s.removeSessionLocked(session)
		return nil, domain.ErrExpiredToken
	}
	session.Touch(now)
	return session.Clone(), nil
}

// DeleteSession removes the session for tokenHash.
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) (bool, error) {
	if err := s.check(ctx, "delete session"); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions.Get(tokenHash)
	if !ok {
		return false, nil
	}
	s.removeSessionLocked(session)
	return true, nil
}

// DeleteSessionsByUser removes every session of userID.
func (s *Store) DeleteSessionsByUser(ctx context.Context, userID string) (int, error) {
	if err := s.check(ctx, "delete user sessions"); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for _, hash := range s.userSessions.Pop(userID) {
		if _, ok := s.sessions.Pop(hash); ok {
			deleted++
		}
	}
	return deleted, nil
}

// DeleteExpiredSessions removes every session expired at now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	if err := s.check(ctx, "delete expired sessions"); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.sessions.RemoveIf(func(_ string, session *domain.Session) bool {
		return session.ExpiredAt(now, idle)
	})
	for _, session := range removed {
		s.userSessions.Remove(session.UserID, session.TokenHash)
	}
	return len(removed), nil
}

// CountSessions returns the number of stored sessions.
func (s *Store) CountSessions(ctx context.Context) (int, error) {
	if err := s.check(ctx, "count sessions"); err != nil {
		return 0, err
	}
	return s.sessions.Count(), nil
}

func (s *Store) removeSessionLocked(session *domain.Session) {
	s.sessions.Delete(session.TokenHash)
	s.userSessions.Remove(session.UserID, session.TokenHash)
}
