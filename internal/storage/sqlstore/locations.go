package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

const locationColumns = `id, path, open_access, seq, created_at`

func scanLocation(row rowScanner) (*domain.Location, error) {
	l := &domain.Location{}
	err := row.Scan(&l.ID, &l.Path, &l.OpenAccess, &l.Seq, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLocationNotFound
		}
		return nil, err
	}
	return l, nil
}

// CreateLocation inserts a location and reads back its Seq.
func (s *Store) CreateLocation(ctx context.Context, loc *domain.Location) error {
	var seq uint64
	err := s.db.QueryRowContext(ctx, s.q(
		`INSERT INTO locations (id, path, open_access, created_at) VALUES (?, ?, ?, ?) RETURNING seq`),
		loc.ID, loc.Path, loc.OpenAccess, loc.CreatedAt).Scan(&seq)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateLocation
	}
	if err != nil {
		return s.wrap("create location", err)
	}
	loc.Seq = seq
	return nil
}

// GetLocation retrieves a location by ID.
func (s *Store) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	l, err := scanLocation(s.db.QueryRowContext(ctx, s.q(
		`SELECT `+locationColumns+` FROM locations WHERE id = ?`), id))
	return l, s.wrap("get location", err)
}

// UpdateLocation stores OpenAccess. Path and Seq are immutable.
func (s *Store) UpdateLocation(ctx context.Context, loc *domain.Location) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE locations SET open_access = ? WHERE id = ?`), loc.OpenAccess, loc.ID)
	if err != nil {
		return s.wrap("update location", err)
	}
	return s.wrap("update location", requireRow(res, domain.ErrLocationNotFound))
}

// DeleteLocation removes a location. Permissions cascade.
func (s *Store) DeleteLocation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM locations WHERE id = ?`), id)
	if err != nil {
		return s.wrap("delete location", err)
	}
	return s.wrap("delete location", requireRow(res, domain.ErrLocationNotFound))
}

// ListLocations returns all locations ordered by Seq.
func (s *Store) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	return s.queryLocations(ctx, "list locations",
		`SELECT `+locationColumns+` FROM locations ORDER BY seq`)
}

// FindLocationsByPath returns locations whose path is one of paths.
func (s *Store) FindLocationsByPath(ctx context.Context, paths []string) ([]*domain.Location, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StoreError("sql find locations", err)
	}
	if len(paths) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(paths)), ", ")
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}
	return s.queryLocations(ctx, "find locations", s.q(
		`SELECT `+locationColumns+` FROM locations WHERE path IN (`+placeholders+`) ORDER BY seq`), args...)
}

func (s *Store) queryLocations(ctx context.Context, op, query string, args ...any) ([]*domain.Location, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.wrap(op, err)
	}
	defer rows.Close()

	var locs []*domain.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, s.wrap(op, err)
		}
		locs = append(locs, l)
	}
	return locs, s.wrap(op, rows.Err())
}

// Grant records a permission. Granting twice is a no-op.
func (s *Store) Grant(ctx context.Context, locationID, userID string) error {
	return s.tx(ctx, "grant", func(ctx context.Context, tx DBTX) error {
		if err := s.requireExists(ctx, tx, `SELECT 1 FROM locations WHERE id = ?`, locationID, domain.ErrLocationNotFound); err != nil {
			return err
		}
		if err := s.requireExists(ctx, tx, `SELECT 1 FROM users WHERE id = ?`, userID, domain.ErrUserNotFound); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, s.q(
			`INSERT INTO permissions (location_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING`),
			locationID, userID)
		return err
	})
}

func (s *Store) requireExists(ctx context.Context, tx DBTX, query, id string, notFound error) error {
	var one int
	err := tx.QueryRowContext(ctx, s.q(query), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

// Revoke removes a permission. Fails with ErrPermissionNotFound.
func (s *Store) Revoke(ctx context.Context, locationID, userID string) error {
	res, err := s.db.ExecContext(ctx, s.q(
		`DELETE FROM permissions WHERE location_id = ? AND user_id = ?`), locationID, userID)
	if err != nil {
		return s.wrap("revoke", err)
	}
	return s.wrap("revoke", requireRow(res, domain.ErrPermissionNotFound))
}

// HasPermission reports whether userID was granted locationID.
func (s *Store) HasPermission(ctx context.Context, locationID, userID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT 1 FROM permissions WHERE location_id = ? AND user_id = ?`), locationID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.wrap("has permission", err)
	}
	return true, nil
}

// AllowedUsers returns the sorted IDs of users granted locationID.
func (s *Store) AllowedUsers(ctx context.Context, locationID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT user_id FROM permissions WHERE location_id = ?`), locationID)
	if err != nil {
		return nil, s.wrap("allowed users", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, s.wrap("allowed users", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrap("allowed users", err)
	}
	// Byte order, independent of the database collation.
	sort.Strings(ids)
	return ids, nil
}
