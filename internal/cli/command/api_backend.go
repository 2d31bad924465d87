package command

import (
	"context"
	"net/http"
	"net/url"

	"github.com/nguyendn/wwwhisper/internal/cli/connection"
	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// apiBackend runs the commands through the admin API of a running server.
type apiBackend struct {
	client *connection.Client
}

// NewAPIBackend logs in to the server behind client.
func NewAPIBackend(ctx context.Context, client *connection.Client, email, password string) (Backend, error) {
	if err := client.Login(ctx, email, password); err != nil {
		return nil, err
	}
	return &apiBackend{client: client}, nil
}

type apiUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

type apiLocation struct {
	ID           string    `json:"id"`
	Path         string    `json:"path"`
	OpenAccess   bool      `json:"openAccess"`
	AllowedUsers []apiUser `json:"allowedUsers"`
}

func (u apiUser) record() UserRecord {
	id, _ := domain.ParseID(u.ID)
	return UserRecord{ID: id, Email: u.Email, IsAdmin: u.IsAdmin}
}

func (l apiLocation) record() LocationRecord {
	id, _ := domain.ParseID(l.ID)
	emails := make([]string, 0, len(l.AllowedUsers))
	for _, u := range l.AllowedUsers {
		emails = append(emails, u.Email)
	}
	return LocationRecord{ID: id, Path: l.Path, OpenAccess: l.OpenAccess, AllowedUsers: emails}
}

func (b *apiBackend) users(ctx context.Context) ([]apiUser, error) {
	var resp struct {
		Users []apiUser `json:"users"`
	}
	if err := b.client.Do(ctx, http.MethodGet, "/admin/api/users/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (b *apiBackend) locations(ctx context.Context) ([]apiLocation, error) {
	var resp struct {
		Locations []apiLocation `json:"locations"`
	}
	if err := b.client.Do(ctx, http.MethodGet, "/admin/api/locations/", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Locations, nil
}

// userID resolves an email to a bare user ID.
func (b *apiBackend) userID(ctx context.Context, email string) (string, error) {
	normalized, err := domain.NormalizeEmail(email)
	if err != nil {
		return "", err
	}
	users, err := b.users(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if u.Email == normalized {
			return u.record().ID, nil
		}
	}
	return "", domain.ErrUserNotFound.WithDetails(normalized)
}

// locationID resolves a path to a bare location ID.
func (b *apiBackend) locationID(ctx context.Context, path string) (string, error) {
	normalized, err := domain.NormalizePattern(path)
	if err != nil {
		return "", err
	}
	locs, err := b.locations(ctx)
	if err != nil {
		return "", err
	}
	for _, l := range locs {
		if l.Path == normalized {
			return l.record().ID, nil
		}
	}
	return "", domain.ErrLocationNotFound.WithDetails(normalized)
}

func (b *apiBackend) ListUsers(ctx context.Context) (UserList, error) {
	users, err := b.users(ctx)
	if err != nil {
		return nil, err
	}
	out := make(UserList, 0, len(users))
	for _, u := range users {
		out = append(out, u.record())
	}
	return out, nil
}

func (b *apiBackend) AddUser(ctx context.Context, email, password string, admin bool) (*UserRecord, error) {
	body := map[string]any{"email": email, "password": password, "isAdmin": admin}
	var u apiUser
	if err := b.client.Do(ctx, http.MethodPost, "/admin/api/users/", body, &u); err != nil {
		return nil, err
	}
	r := u.record()
	return &r, nil
}

func (b *apiBackend) RemoveUser(ctx context.Context, email string) error {
	id, err := b.userID(ctx, email)
	if err != nil {
		return err
	}
	return b.client.Do(ctx, http.MethodDelete, "/admin/api/users/"+url.PathEscape(id)+"/", nil, nil)
}

func (b *apiBackend) SetPassword(context.Context, string, string) error {
	return ErrOfflineOnly
}

func (b *apiBackend) ListLocations(ctx context.Context) (LocationList, error) {
	locs, err := b.locations(ctx)
	if err != nil {
		return nil, err
	}
	out := make(LocationList, 0, len(locs))
	for _, l := range locs {
		out = append(out, l.record())
	}
	return out, nil
}

func (b *apiBackend) AddLocation(ctx context.Context, path string, open bool) (*LocationRecord, error) {
	body := map[string]any{"path": path, "openAccess": open}
	var l apiLocation
	if err := b.client.Do(ctx, http.MethodPost, "/admin/api/locations/", body, &l); err != nil {
		return nil, err
	}
	r := l.record()
	return &r, nil
}

func (b *apiBackend) RemoveLocation(ctx context.Context, path string) error {
	id, err := b.locationID(ctx, path)
	if err != nil {
		return err
	}
	return b.client.Do(ctx, http.MethodDelete, "/admin/api/locations/"+id+"/", nil, nil)
}

func (b *apiBackend) SetOpenAccess(ctx context.Context, path string, open bool) (*LocationRecord, error) {
	id, err := b.locationID(ctx, path)
	if err != nil {
		return nil, err
	}
	method := http.MethodDelete
	if open {
		method = http.MethodPut
	}
	var l apiLocation
	if err := b.client.Do(ctx, method, "/admin/api/locations/"+id+"/open-access/", nil, &l); err != nil {
		return nil, err
	}
	r := l.record()
	return &r, nil
}

func (b *apiBackend) grantPath(ctx context.Context, path, email string) (string, error) {
	locID, err := b.locationID(ctx, path)
	if err != nil {
		return "", err
	}
	userID, err := b.userID(ctx, email)
	if err != nil {
		return "", err
	}
	return "/admin/api/locations/" + locID + "/allowed-users/" + userID + "/", nil
}

func (b *apiBackend) Grant(ctx context.Context, path, email string) error {
	p, err := b.grantPath(ctx, path, email)
	if err != nil {
		return err
	}
	return b.client.Do(ctx, http.MethodPut, p, nil, nil)
}

func (b *apiBackend) Revoke(ctx context.Context, path, email string) error {
	p, err := b.grantPath(ctx, path, email)
	if err != nil {
		return err
	}
	return b.client.Do(ctx, http.MethodDelete, p, nil, nil)
}

func (b *apiBackend) Close() error {
	return b.client.Logout(context.Background())
}
