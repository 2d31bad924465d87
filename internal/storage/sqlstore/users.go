package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

const userColumns = `id, email, password_hash, is_admin, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a user. Fails with ErrDuplicateEmail.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		user.ID, user.Email, user.PasswordHash, user.IsAdmin, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEmail
	}
	return s.wrap("create user", err)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
	return u, s.wrap("get user", err)
}

// GetUserByEmail retrieves a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(
		`SELECT `+userColumns+` FROM users WHERE email = ?`), email))
	return u, s.wrap("get user by email", err)
}

// UpdateUser replaces the mutable fields of a user.
func (s *Store) UpdateUser(ctx context.Context, user *domain.User) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE users SET email = ?, password_hash = ?, is_admin = ?, updated_at = ? WHERE id = ?`),
		user.Email, user.PasswordHash, user.IsAdmin, user.UpdatedAt, user.ID)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEmail
	}
	if err != nil {
		return s.wrap("update user", err)
	}
	return s.wrap("update user", requireRow(res, domain.ErrUserNotFound))
}

// DeleteUser removes a user. Permissions cascade through the foreign key.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return s.wrap("delete user", err)
	}
	return s.wrap("delete user", requireRow(res, domain.ErrUserNotFound))
}

// ListUsers returns all users ordered by creation time.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, s.wrap("list users", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, s.wrap("list users", err)
		}
		users = append(users, u)
	}
	return users, s.wrap("list users", rows.Err())
}

// requireRow maps zero affected rows to notFound.
func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
