package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

func TestCredentialService_CreateUser(t *testing.T) {
	f := newFixture(newMockStore(), DefaultSessionConfig())
	ctx := context.Background()

	u, err := f.credentials.CreateUser(ctx, &CreateUserRequest{Email: " Alice@Example.com", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Errorf("Email = %q, want normalized", u.Email)
	}
	if u.PasswordHash == "" || u.PasswordHash == "s3cret-pass" {
		t.Errorf("PasswordHash = %q, want an argon2id hash", u.PasswordHash)
	}

	tests := []struct {
		name string
		req  CreateUserRequest
		want error
	}{
		{"duplicate email differing in case", CreateUserRequest{Email: "ALICE@example.com", Password: "another-pass"}, domain.ErrDuplicateEmail},
		{"weak password", CreateUserRequest{Email: "bob@example.com", Password: "short"}, domain.ErrWeakPassword},
		{"invalid email", CreateUserRequest{Email: "bob", Password: "long enough"}, domain.ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.credentials.CreateUser(ctx, &tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateUser() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCredentialService_VerifyCredentials(t *testing.T) {
	f := newFixture(newMockStore(), DefaultSessionConfig())
	ctx := context.Background()
	u := f.mustUser(t, "alice@example.com", false)

	got, err := f.credentials.VerifyCredentials(ctx, "Alice@Example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("VerifyCredentials failed: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("VerifyCredentials() user = %s, want %s", got.ID, u.ID)
	}

	// Unknown user and wrong password must be indistinguishable.
	for _, tc := range []struct{ email, password string }{
		{"alice@example.com", "wrong password"},
		{"nobody@example.com", "correct horse battery"},
		{"not an email", "correct horse battery"},
	} {
		_, err := f.credentials.VerifyCredentials(ctx, tc.email, tc.password)
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Errorf("VerifyCredentials(%q) error = %v, want ErrInvalidCredentials", tc.email, err)
		}
	}
}

func TestCredentialService_VerifyCredentials_StoreFailure(t *testing.T) {
	store := &failingStore{mockStore: newMockStore(), failEmailLookup: true}
	f := newFixture(store, DefaultSessionConfig())

	_, err := f.credentials.VerifyCredentials(context.Background(), "alice@example.com", "whatever-pass")
	if !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("VerifyCredentials() error = %v, want ErrStoreUnavailable", err)
	}
}

func TestCredentialService_ChangePassword(t *testing.T) {
	f := newFixture(newMockStore(), DefaultSessionConfig())
	ctx := context.Background()
	u := f.mustUser(t, "alice@example.com", false)
	token := f.mustLogin(t, u)

	if err := f.credentials.ChangePassword(ctx, u.ID, "x"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("ChangePassword(weak) error = %v, want ErrWeakPassword", err)
	}
	if err := f.credentials.ChangePassword(ctx, u.ID, "brand new password"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := f.credentials.VerifyCredentials(ctx, u.Email, "correct horse battery"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("old password still accepted: %v", err)
	}
	if _, err := f.credentials.VerifyCredentials(ctx, u.Email, "brand new password"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if _, err := f.sessions.Resolve(ctx, token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("session survived a password change: %v", err)
	}
}

func TestCredentialService_RemoveUser(t *testing.T) {
	f := newFixture(newMockStore(), DefaultSessionConfig())
	ctx := context.Background()
	u := f.mustUser(t, "alice@example.com", false)
	loc := f.mustLocation(t, "/private", false)
	token := f.mustLogin(t, u)

	if err := f.locations.Grant(ctx, loc.ID, u.ID); err != nil {
		t.Fatalf("Grant failed: %v", err)
	}
	if err := f.credentials.RemoveUser(ctx, u.ID); err != nil {
		t.Fatalf("RemoveUser failed: %v", err)
	}

	users, _ := f.locations.AllowedUsers(ctx, loc.ID)
	if len(users) != 0 {
		t.Errorf("AllowedUsers() = %v, want no dangling permission", users)
	}
	if _, err := f.sessions.Resolve(ctx, token); !errors.Is(err, domain.ErrInvalidToken) {
		t.Errorf("Resolve() after RemoveUser error = %v, want ErrInvalidToken", err)
	}
	if err := f.credentials.RemoveUser(ctx, u.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("second RemoveUser error = %v, want ErrUserNotFound", err)
	}
}
