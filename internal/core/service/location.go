package service

import (
	"context"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// LocationService manages protected locations and who may visit them.
type LocationService struct {
	repo LocationRepository
	now  func() time.Time
}

// NewLocationService creates a new LocationService.
func NewLocationService(repo LocationRepository) *LocationService {
	return &LocationService{repo: repo, now: time.Now}
}

// AddLocationRequest contains parameters for location creation.
type AddLocationRequest struct {
	Path       string
	OpenAccess bool
}

// AddLocation registers a protected path pattern.
//
// Fails with ErrInvalidPattern or ErrDuplicateLocation.
func (s *LocationService) AddLocation(ctx context.Context, req *AddLocationRequest) (*domain.Location, error) {
	path, err := domain.NormalizePattern(req.Path)
	if err != nil {
		return nil, err
	}

	loc := domain.NewLocation(path, req.OpenAccess, s.now())
	if err := s.repo.CreateLocation(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// RemoveLocation deletes a location and its permissions.
func (s *LocationService) RemoveLocation(ctx context.Context, id string) error {
	return s.repo.DeleteLocation(ctx, id)
}

// GetLocation returns a location by ID.
func (s *LocationService) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	return s.repo.GetLocation(ctx, id)
}

// ListLocations returns all locations in registration order.
func (s *LocationService) ListLocations(ctx context.Context) ([]*domain.Location, error) {
	return s.repo.ListLocations(ctx)
}

// SetOpenAccess flips the open-to-any-authenticated flag of a location.
func (s *LocationService) SetOpenAccess(ctx context.Context, id string, open bool) (*domain.Location, error) {
	loc, err := s.repo.GetLocation(ctx, id)
	if err != nil {
		return nil, err
	}
	if loc.OpenAccess == open {
		return loc, nil
	}
	loc.OpenAccess = open
	if err := s.repo.UpdateLocation(ctx, loc); err != nil {
		return nil, err
	}
	return loc, nil
}

// Grant allows a user to visit a location. Granting twice is a no-op.
func (s *LocationService) Grant(ctx context.Context, locationID, userID string) error {
	return s.repo.Grant(ctx, locationID, userID)
}

// Revoke withdraws a grant. Fails with ErrPermissionNotFound when the user
// was not granted the location.
func (s *LocationService) Revoke(ctx context.Context, locationID, userID string) error {
	return s.repo.Revoke(ctx, locationID, userID)
}

// AllowedUsers returns the IDs of users granted the location.
func (s *LocationService) AllowedUsers(ctx context.Context, locationID string) ([]string, error) {
	if _, err := s.repo.GetLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return s.repo.AllowedUsers(ctx, locationID)
}

// HasPermission reports whether the user was granted the location.
func (s *LocationService) HasPermission(ctx context.Context, locationID, userID string) (bool, error) {
	return s.repo.HasPermission(ctx, locationID, userID)
}

// FindMatchingLocations returns every location covering requestPath, most
// specific first. Equally specific locations keep registration order.
//
// Fails with ErrInvalidPath when the path cannot be normalized.
func (s *LocationService) FindMatchingLocations(ctx context.Context, requestPath string) ([]*domain.Location, error) {
	path, err := domain.NormalizePath(requestPath)
	if err != nil {
		return nil, err
	}

	found, err := s.repo.FindLocationsByPath(ctx, domain.CandidatePaths(path))
	if err != nil {
		return nil, err
	}
	return domain.MatchLocations(found, path), nil
}
