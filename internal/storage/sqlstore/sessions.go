package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

const sessionColumns = `id, user_id, token_hash, ip_address, user_agent, created_at, last_seen, expires_at`

func scanSession(row rowScanner) (*domain.Session, error) {
	s := &domain.Session{}
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.LastSeen, &s.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	return s, nil
}

// CreateSession inserts a session keyed by its token hash.
func (s *Store) CreateSession(ctx context.Context, session *domain.Session) error {
	if err := session.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		session.ID, session.UserID, session.TokenHash, session.IPAddress, session.UserAgent,
		session.CreatedAt, session.LastSeen, session.ExpiresAt)
	if isUniqueViolation(err) {
		return domain.ErrInternal.WithDetails("token hash collision")
	}
	return s.wrap("create session", err)
}

// TouchSession locks the row, checks expiry and slides LastSeen in one
// transaction. An expired session is deleted before ErrExpiredToken is
// returned.
func (s *Store) TouchSession(ctx context.Context, tokenHash string, now time.Time, idle time.Duration) (*domain.Session, error) {
	var (
		touched *domain.Session
		expired bool
	)
	err := s.tx(ctx, "touch session", func(ctx context.Context, tx DBTX) error {
		session, err := scanSession(tx.QueryRowContext(ctx, s.q(
			`SELECT `+sessionColumns+` FROM sessions WHERE token_hash = ?`+s.forUpdate()), tokenHash))
		if err != nil {
			return err
		}
		if session.ExpiredAt(now, idle) {
			expired = true
			_, err := tx.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE token_hash = ?`), tokenHash)
			return err
		}
		session.Touch(now)
		if _, err := tx.ExecContext(ctx, s.q(
			`UPDATE sessions SET last_seen = ? WHERE token_hash = ?`), session.LastSeen, tokenHash); err != nil {
			return err
		}
		touched = session
		return nil
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
func (s *Store) DeleteSession(ctx context.Context, tokenHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM sessions WHERE token_hash = ?`), tokenHash)
	if err != nil {
		return false, s.wrap("delete session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.wrap("delete session", err)
	}
	return n > 0, nil
}

// DeleteSessionsByUser removes every session of userID.
func (s *Store) DeleteSessionsByUser(ctx context.Context, userID string) (int, error) {
	return s.deleteSessions(ctx, "delete user sessions",
		`DELETE FROM sessions WHERE user_id = ?`, userID)
}

// DeleteExpiredSessions removes sessions idle for idle or past their cap.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time, idle time.Duration) (int, error) {
	ms := now.UnixMilli()
	if idle <= 0 {
		return s.deleteSessions(ctx, "delete expired sessions",
			`DELETE FROM sessions WHERE expires_at > 0 AND expires_at <= ?`, ms)
	}
	return s.deleteSessions(ctx, "delete expired sessions",
		`DELETE FROM sessions WHERE (expires_at > 0 AND expires_at <= ?) OR last_seen <= ?`,
		ms, ms-idle.Milliseconds())
}

func (s *Store) deleteSessions(ctx context.Context, op, query string, args ...any) (int, error) {
	res, err := s.db.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, s.wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.wrap(op, err)
	}
	return int(n), nil
}

// CountSessions returns the number of stored sessions.
func (s *Store) CountSessions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, s.wrap("count sessions", err)
}
