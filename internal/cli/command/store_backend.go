package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/infra/confloader"
	"github.com/nguyendn/wwwhisper/internal/storage"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// storeBackend runs the commands against the store directly.
type storeBackend struct {
	store     service.Store
	creds     *service.CredentialService
	sessions  *service.SessionService
	locations *service.LocationService
}

// OpenStoreBackend opens the store named by the server config at path.
func OpenStoreBackend(ctx context.Context, path string, log logger.Logger) (Backend, error) {
	cfg, err := confloader.LoadServerConfig(path)
	if err != nil {
		return nil, err
	}

	storageCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	storageCfg.Backend = cfg.Storage.Backend
	storageCfg.DSN = cfg.Storage.DSN

	store, err := storage.Open(ctx, storageCfg, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	b := newStoreBackend(store, service.SessionConfig{
		IdleTimeout: cfg.Session.IdleTimeout,
		MaxLifetime: cfg.Session.MaxLifetime,
	}, cfg.Security.MinPasswordLength)
	return b, nil
}

func newStoreBackend(store service.Store, sessCfg service.SessionConfig, minPasswordLen int) *storeBackend {
	sessions := service.NewSessionService(store, store, sessCfg)
	return &storeBackend{
		store:     store,
		sessions:  sessions,
		creds:     service.NewCredentialService(store, sessions, service.CredentialConfig{MinPasswordLength: minPasswordLen}),
		locations: service.NewLocationService(store),
	}
}

func userRecord(u *domain.User) UserRecord {
	return UserRecord{ID: u.ID, Email: u.Email, IsAdmin: u.IsAdmin, CreatedAt: time.UnixMilli(u.CreatedAt)}
}

func (b *storeBackend) ListUsers(ctx context.Context) (UserList, error) {
	users, err := b.creds.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	out := make(UserList, 0, len(users))
	for _, u := range users {
		out = append(out, userRecord(u))
	}
	return out, nil
}

func (b *storeBackend) AddUser(ctx context.Context, email, password string, admin bool) (*UserRecord, error) {
	u, err := b.creds.CreateUser(ctx, &service.CreateUserRequest{Email: email, Password: password, IsAdmin: admin})
	if err != nil {
		return nil, err
	}
	r := userRecord(u)
	return &r, nil
}

func (b *storeBackend) RemoveUser(ctx context.Context, email string) error {
	u, err := b.creds.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	return b.creds.RemoveUser(ctx, u.ID)
}

func (b *storeBackend) SetPassword(ctx context.Context, email, password string) error {
	u, err := b.creds.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	return b.creds.ChangePassword(ctx, u.ID, password)
}

func (b *storeBackend) locationRecord(ctx context.Context, loc *domain.Location) (LocationRecord, error) {
	ids, err := b.locations.AllowedUsers(ctx, loc.ID)
	if err != nil {
		return LocationRecord{}, err
	}
	emails := make([]string, 0, len(ids))
	for _, id := range ids {
		u, err := b.creds.GetUser(ctx, id)
		if errors.Is(err, domain.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return LocationRecord{}, err
		}
		emails = append(emails, u.Email)
	}
	return LocationRecord{ID: loc.ID, Path: loc.Path, OpenAccess: loc.OpenAccess, AllowedUsers: emails}, nil
}

// findLocation returns the location registered under path.
func (b *storeBackend) findLocation(ctx context.Context, path string) (*domain.Location, error) {
	normalized, err := domain.NormalizePattern(path)
	if err != nil {
		return nil, err
	}
	locs, err := b.locations.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	for _, loc := range locs {
		if loc.Path == normalized {
			return loc, nil
		}
	}
	return nil, domain.ErrLocationNotFound.WithDetails(normalized)
}

func (b *storeBackend) ListLocations(ctx context.Context) (LocationList, error) {
	locs, err := b.locations.ListLocations(ctx)
	if err != nil {
		return nil, err
	}
	out := make(LocationList, 0, len(locs))
	for _, loc := range locs {
		r, err := b.locationRecord(ctx, loc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (b *storeBackend) AddLocation(ctx context.Context, path string, open bool) (*LocationRecord, error) {
	loc, err := b.locations.AddLocation(ctx, &service.AddLocationRequest{Path: path, OpenAccess: open})
	if err != nil {
		return nil, err
	}
	r, err := b.locationRecord(ctx, loc)
	return &r, err
}

func (b *storeBackend) RemoveLocation(ctx context.Context, path string) error {
	loc, err := b.findLocation(ctx, path)
	if err != nil {
		return err
	}
	return b.locations.RemoveLocation(ctx, loc.ID)
}

func (b *storeBackend) SetOpenAccess(ctx context.Context, path string, open bool) (*LocationRecord, error) {
	loc, err := b.findLocation(ctx, path)
	if err != nil {
		return nil, err
	}
	if loc, err = b.locations.SetOpenAccess(ctx, loc.ID, open); err != nil {
		return nil, err
	}
	r, err := b.locationRecord(ctx, loc)
	return &r, err
}

func (b *storeBackend) grantee(ctx context.Context, path, email string) (*domain.Location, *domain.User, error) {
	loc, err := b.findLocation(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	u, err := b.creds.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	return loc, u, nil
}

func (b *storeBackend) Grant(ctx context.Context, path, email string) error {
	loc, u, err := b.grantee(ctx, path, email)
	if err != nil {
		return err
	}
	return b.locations.Grant(ctx, loc.ID, u.ID)
}

func (b *storeBackend) Revoke(ctx context.Context, path, email string) error {
	loc, u, err := b.grantee(ctx, path, email)
	if err != nil {
		return err
	}
	return b.locations.Revoke(ctx, loc.ID, u.ID)
}

func (b *storeBackend) Close() error {
	return b.store.Close()
}
