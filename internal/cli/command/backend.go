package command

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nguyendn/wwwhisper/internal/cli/output"
)

// ErrOfflineOnly is returned by API backends for operations the admin API
// does not expose.
var ErrOfflineOnly = errors.New("only available in offline mode (--config)")

// Backend is what the commands operate on. Users are named by email and
// locations by path.
type Backend interface {
	ListUsers(ctx context.Context) (UserList, error)
	AddUser(ctx context.Context, email, password string, admin bool) (*UserRecord, error)
	RemoveUser(ctx context.Context, email string) error
	SetPassword(ctx context.Context, email, password string) error

	ListLocations(ctx context.Context) (LocationList, error)
	AddLocation(ctx context.Context, path string, open bool) (*LocationRecord, error)
	RemoveLocation(ctx context.Context, path string) error
	SetOpenAccess(ctx context.Context, path string, open bool) (*LocationRecord, error)
	Grant(ctx context.Context, path, email string) error
	Revoke(ctx context.Context, path, email string) error

	Close() error
}

// UserRecord is a user as printed by the CLI.
type UserRecord struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	IsAdmin   bool      `json:"isAdmin" yaml:"is_admin"`
	CreatedAt time.Time `json:"createdAt,omitzero" yaml:"created_at,omitempty"`
}

// UserList is printed as a table of users.
type UserList []UserRecord

// Table implements output.Tabular.
func (l UserList) Table() *output.Table {
	t := output.NewTable("ID", "EMAIL", "ADMIN", "CREATED")
	for _, u := range l {
		created := ""
		if !u.CreatedAt.IsZero() {
			created = u.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		t.AddRow(u.ID, u.Email, u.IsAdmin, created)
	}
	return t
}

// LocationRecord is a location as printed by the CLI.
type LocationRecord struct {
	ID           string   `json:"id" yaml:"id"`
	Path         string   `json:"path" yaml:"path"`
	OpenAccess   bool     `json:"openAccess" yaml:"open_access"`
	AllowedUsers []string `json:"allowedUsers" yaml:"allowed_users"`
}

// LocationList is printed as a table of locations.
type LocationList []LocationRecord

// Table implements output.Tabular.
func (l LocationList) Table() *output.Table {
	t := output.NewTable("PATH", "ACCESS", "ALLOWED USERS")
	for _, loc := range l {
		access := "restricted"
		if loc.OpenAccess {
			access = "any user"
		}
		t.AddRow(loc.Path, access, strings.Join(loc.AllowedUsers, ","))
	}
	return t
}

// Table implements output.Tabular.
func (r *UserRecord) Table() *output.Table {
	return UserList{*r}.Table()
}

// Table implements output.Tabular.
func (r *LocationRecord) Table() *output.Table {
	return LocationList{*r}.Table()
}
