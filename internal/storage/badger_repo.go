package storage

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// ============================================================================
// Users
// ============================================================================

// CreateUser stores a new user. Fails with ErrDuplicateEmail.
func (s *BadgerStore) CreateUser(ctx context.Context, user *domain.User) error {
	return s.update(ctx, "create user", func(txn *badger.Txn) error {
		taken, err := exists(txn, userEmailKey(user.Email))
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrDuplicateEmail
		}
		if err := txn.Set(userEmailKey(user.Email), []byte(user.ID)); err != nil {
			return err
		}
		return setJSON(txn, userKey(user.ID), user)
	})
}

func loadUser(txn *badger.Txn, id string) (*domain.User, error) {
	var u domain.User
	if err := getJSON(txn, userKey(id), &u); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID.
func (s *BadgerStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var u *domain.User
	err := s.view(ctx, "get user", func(txn *badger.Txn) error {
		var err error
		u, err = loadUser(txn, id)
		return err
	})
	return u, err
}

// GetUserByEmail retrieves a user by normalized email.
func (s *BadgerStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u *domain.User
	err := s.view(ctx, "get user by email", func(txn *badger.Txn) error {
		id, err := getString(txn, userEmailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		u, err = loadUser(txn, id)
		return err
	})
	return u, err
}

// UpdateUser replaces a stored user, moving the email index if needed.
func (s *BadgerStore) UpdateUser(ctx context.Context, user *domain.User) error {
	return s.update(ctx, "update user", func(txn *badger.Txn) error {
		existing, err := loadUser(txn, user.ID)
		if err != nil {
			return err
		}
		if existing.Email != user.Email {
			taken, err := exists(txn, userEmailKey(user.Email))
			if err != nil {
				return err
			}
			if taken {
				return domain.ErrDuplicateEmail
			}
			if err := txn.Delete(userEmailKey(existing.Email)); err != nil {
				return err
			}
			if err := txn.Set(userEmailKey(user.Email), []byte(user.ID)); err != nil {
				return err
			}
		}
		return setJSON(txn, userKey(user.ID), user)
	})
}

// DeleteUser removes a user and its permissions in one transaction.
func (s *BadgerStore) DeleteUser(ctx context.Context, id string) error {
	return s.update(ctx, "delete user", func(txn *badger.Txn) error {
		u, err := loadUser(txn, id)
		if err != nil {
			return err
		}
		for _, k := range keysWithPrefix(txn, permissionRevPrefix(id)) {
			if err := txn.Delete(permissionKey(lastSegment(k), id)); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		if err := txn.Delete(userEmailKey(u.Email)); err != nil {
			return err
		}
		return txn.Delete(userKey(id))
	})
}

// ListUsers returns all users ordered by creation time.
func (s *BadgerStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := s.view(ctx, "list users", func(txn *badger.Txn) error {
		return scanJSON(txn, key(prefixUser), func(val []byte) error {
			var u domain.User
			if err := json.Unmarshal(val, &u); err != nil {
				return err
			}
			users = append(users, &u)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
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
func (s *BadgerStore) CreateLocation(ctx context.Context, loc *domain.Location) error {
	var seq uint64
	err := s.update(ctx, "create location", func(txn *badger.Txn) error {
		taken, err := exists(txn, locationPathKey(loc.Path))
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrDuplicateLocation
		}

		seq = 1
		if item, err := txn.Get(key(keyLocationSeq)); err == nil {
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			seq = decodeUint64(val) + 1
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key(keyLocationSeq), encodeUint64(seq)); err != nil {
			return err
		}

		stored := *loc
		stored.Seq = seq
		if err := txn.Set(locationPathKey(loc.Path), []byte(loc.ID)); err != nil {
			return err
		}
		return setJSON(txn, locationKey(loc.ID), &stored)
	})
	if err == nil {
		loc.Seq = seq
	}
	return err
}

func loadLocation(txn *badger.Txn, id string) (*domain.Location, error) {
	var l domain.Location
	if err := getJSON(txn, locationKey(id), &l); err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrLocationNotFound
		}
		return nil, err
	}
	return &l, nil
}

// GetLocation retrieves a location by ID.
func (s *BadgerStore) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	var l *domain.Location
	err := s.view(ctx, "get location", func(txn *badger.Txn) error {
		var err error
		l, err = loadLocation(txn, id)
		return err
	})
	return l, err
}

// UpdateLocation stores the mutable fields of a location.
func (s *BadgerStore) UpdateLocation(ctx context.Context, loc *domain.Location) error {
	return s.update(ctx, "update location", func(txn *badger.Txn) error {
		existing, err := loadLocation(txn, loc.ID)
		if err != nil {
			return err
		}
		existing.OpenAccess = loc.OpenAccess
		return setJSON(txn, locationKey(loc.ID), existing)
	})
}

// DeleteLocation removes a location and its permissions in one transaction.
func (s *BadgerStore) DeleteLocation(ctx context.Context, id string) error {
	return s.update(ctx, "delete location", func(txn *badger.Txn) error {
		l, err := loadLocation(txn, id)
		if err != nil {
			return err
		}
		for _, k := range keysWithPrefix(txn, permissionPrefix(id)) {
			if err := txn.Delete(permissionRevKey(lastSegment(k), id)); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		if err := txn.Delete(locationPathKey(l.Path)); err != nil {
			return err
		}
		return txn.Delete(locationKey(id))
	})
}

// ListLocations returns all locations ordered by Seq.
func (s *BadgerStore) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	var locs []*domain.Location
	err := s.view(ctx, "list locations", func(txn *badger.Txn) error {
		return scanJSON(txn, key(prefixLocation), func(val []byte) error {
			var l domain.Location
			if err := json.Unmarshal(val, &l); err != nil {
				return err
			}
			locs = append(locs, &l)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Seq < locs[j].Seq })
	return locs, nil
}

// FindLocationsByPath returns locations whose path is one of paths, read
// in a single snapshot.
func (s *BadgerStore) FindLocationsByPath(ctx context.Context, paths []string) ([]*domain.Location, error) {
	var locs []*domain.Location
	err := s.view(ctx, "find locations", func(txn *badger.Txn) error {
		for _, p := range paths {
			id, err := getString(txn, locationPathKey(p))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			l, err := loadLocation(txn, id)
			if err != nil {
				return err
			}
			locs = append(locs, l)
		}
		return nil
	})
	return locs, err
}

// Grant records a permission. Granting twice is a no-op.
func (s *BadgerStore) Grant(ctx context.Context, locationID, userID string) error {
	return s.update(ctx, "grant", func(txn *badger.Txn) error {
		if ok, err := exists(txn, locationKey(locationID)); err != nil {
			return err
		} else if !ok {
			return domain.ErrLocationNotFound
		}
		if ok, err := exists(txn, userKey(userID)); err != nil {
			return err
		} else if !ok {
			return domain.ErrUserNotFound
		}
		if err := txn.Set(permissionKey(locationID, userID), nil); err != nil {
			return err
		}
		return txn.Set(permissionRevKey(userID, locationID), nil)
	})
}

// Revoke removes a permission. Fails with ErrPermissionNotFound.
func (s *BadgerStore) Revoke(ctx context.Context, locationID, userID string) error {
	return s.update(ctx, "revoke", func(txn *badger.Txn) error {
		ok, err := exists(txn, permissionKey(locationID, userID))
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrPermissionNotFound
		}
		if err := txn.Delete(permissionKey(locationID, userID)); err != nil {
			return err
		}
		return txn.Delete(permissionRevKey(userID, locationID))
	})
}

// HasPermission reports whether userID was granted locationID.
func (s *BadgerStore) HasPermission(ctx context.Context, locationID, userID string) (bool, error) {
	var ok bool
	err := s.view(ctx, "has permission", func(txn *badger.Txn) error {
		var err error
		ok, err = exists(txn, permissionKey(locationID, userID))
		return err
	})
	return ok, err
}

// AllowedUsers returns the sorted IDs of users granted locationID.
func (s *BadgerStore) AllowedUsers(ctx context.Context, locationID string) ([]string, error) {
	var ids []string
	err := s.view(ctx, "allowed users", func(txn *badger.Txn) error {
		for _, k := range keysWithPrefix(txn, permissionPrefix(locationID)) {
			ids = append(ids, lastSegment(k))
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

// ============================================================================
// Sessions
// ============================================================================

// CreateSession stores a new session keyed by its token hash.
func (s *BadgerStore) CreateSession(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	return s.update(ctx, "create session", func(txn *badger.Txn) error {
		if ok, err := exists(txn, sessionKey(session.TokenHash)); err != nil {
			return err
		} else if ok {
			return domain.ErrInternal.WithDetails("token hash collision")
		}
		if err := txn.Set(userSessionKey(session.UserID, session.TokenHash), nil); err != nil {
			return err
		}
		return setJSON(txn, sessionKey(session.TokenHash), session)
	})
}

func deleteSessionTxn(txn *badger.Txn, session *domain.Session) error {
	if err := txn.Delete(userSessionKey(session.UserID, session.TokenHash)); err != nil {
		return err
	}
	return txn.Delete(sessionKey(session.TokenHash))
}

// TouchSession checks expiry and slides LastSeen in one serializable
// transaction. A concurrent DeleteSession makes one of the two retry.
func (s *BadgerStore) TouchSession(ctx context.Context, tokenHash string, now time.Time, idle time.Duration) (*domain.Session, error) {
	var (
		touched *domain.Session
		expired bool
	)
	err := s.update(ctx, "touch session", func(txn *badger.Txn) error {
		touched, expired = nil, false

		var session domain.Session
		if err := getJSON(txn, sessionKey(tokenHash), &session); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return domain.ErrInvalidToken
			}
			return err
		}
		if session.ExpiredAt(now, idle) {
			// Commit the delete, report expiry after the transaction.
			expired = true
			return deleteSessionTxn(txn, &session)
		}
		session.Touch(now)
		touched = &session
		return setJSON(txn, sessionKey(tokenHash), &session)
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, domain.ErrExpiredToken
	}
	return touched, nil
}

// DeleteSession removes the session for tokenHash.
func (s *BadgerStore) DeleteSession(ctx context.Context, tokenHash string) (bool, error) {
	var deleted bool
	err := s.update(ctx, "delete session", func(txn *badger.Txn) error {
		deleted = false
		var session domain.Session
		if err := getJSON(txn, sessionKey(tokenHash), &session); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		deleted = true
		return deleteSessionTxn(txn, &session)
	})
	return deleted, err
}

// DeleteSessionsByUser removes every session of userID.
func (s *BadgerStore) DeleteSessionsByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.update(ctx, "delete user sessions", func(txn *badger.Txn) error {
		n = 0
		for _, k := range keysWithPrefix(txn, userSessionPrefix(userID)) {
			if err := txn.Delete(sessionKey(lastSegment(k))); err != nil {
				return err
			}
			if err := txn.Delete(k); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// DeleteExpiredSessions removes every session expired at now.
func (s *BadgerStore) DeleteExpiredSessions(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	var n int
	err := s.update(ctx, "delete expired sessions", func(txn *badger.Txn) error {
		n = 0
		var expired []domain.Session
		err := scanJSON(txn, key(prefixSession), func(val []byte) error {
			var session domain.Session
			if err := json.Unmarshal(val, &session); err != nil {
				return err
			}
			if session.ExpiredAt(now, idle) {
				expired = append(expired, session)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for i := range expired {
			if err := deleteSessionTxn(txn, &expired[i]); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

// CountSessions returns the number of stored sessions.
func (s *BadgerStore) CountSessions(ctx context.Context) (int, error) {
	var n int
	err := s.view(ctx, "count sessions", func(txn *badger.Txn) error {
		n = len(keysWithPrefix(txn, key(prefixSession)))
		return nil
	})
	return n, err
}
