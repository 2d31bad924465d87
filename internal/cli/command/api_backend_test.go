package command

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nguyendn/wwwhisper/internal/cli/connection"
	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/server/httpserver"
	"github.com/nguyendn/wwwhisper/internal/server/httpserver/handler"
	"github.com/nguyendn/wwwhisper/internal/storage/memory"
)

// liveServer runs the real router over TLS with one admin account.
func liveServer(t *testing.T) (*httptest.Server, *storeBackend) {
	t.Helper()
	store := memory.New()
	local := newStoreBackend(store, service.DefaultSessionConfig(), 0)
	if _, err := local.AddUser(context.Background(), "root@example.com", testPassword, true); err != nil {
		t.Fatal(err)
	}

	authz := service.NewAuthorizer(local.sessions, local.locations, service.NewAdminSet(nil), service.AuthorizerConfig{})
	h := handler.New(handler.Deps{
		Credentials: local.creds,
		Sessions:    local.sessions,
		Locations:   local.locations,
		Authorizer:  authz,
		CSRF:        service.NewCSRFService([]byte(strings.Repeat("k", 32)), time.Hour),
		Store:       store,
	}, handler.Config{SiteURL: "https://example.org", CookieSecure: true})
	router, err := httpserver.NewRouter(&httpserver.RouterConfig{Handler: h})
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewTLSServer(router)
	t.Cleanup(srv.Close)
	return srv, local
}

func TestAPIBackend(t *testing.T) {
	srv, local := liveServer(t)
	ctx := context.Background()

	client, err := connection.NewClient(srv.URL, connection.WithTransport(srv.Client().Transport))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewAPIBackend(ctx, client, "root@example.com", testPassword)
	if err != nil {
		t.Fatalf("NewAPIBackend() error = %v", err)
	}
	defer b.Close()

	if _, err := b.AddUser(ctx, "alice@example.com", testPassword, false); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	loc, err := b.AddLocation(ctx, "/reports", false)
	if err != nil {
		t.Fatalf("AddLocation() error = %v", err)
	}
	if strings.HasPrefix(loc.ID, "urn:") || loc.Path != "/reports" {
		t.Errorf("location = %+v", loc)
	}

	if err := b.Grant(ctx, "/reports/", "Alice@Example.com"); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	locs, err := b.ListLocations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(locs) != 1 || len(locs[0].AllowedUsers) != 1 || locs[0].AllowedUsers[0] != "alice@example.com" {
		t.Errorf("locations = %+v", locs)
	}

	if rec, err := b.SetOpenAccess(ctx, "/reports", true); err != nil || !rec.OpenAccess {
		t.Errorf("SetOpenAccess() = %+v, %v", rec, err)
	}
	if err := b.Revoke(ctx, "/reports", "alice@example.com"); err != nil {
		t.Errorf("Revoke() error = %v", err)
	}

	if err := b.SetPassword(ctx, "alice@example.com", "whatever pw"); !errors.Is(err, ErrOfflineOnly) {
		t.Errorf("SetPassword() = %v, want ErrOfflineOnly", err)
	}

	if err := b.RemoveUser(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RemoveUser() error = %v", err)
	}
	if err := b.RemoveLocation(ctx, "/reports"); err != nil {
		t.Fatalf("RemoveLocation() error = %v", err)
	}

	// The server-side store saw every change.
	users, _ := local.ListUsers(ctx)
	if len(users) != 1 {
		t.Errorf("store users = %+v", users)
	}
	if err := b.RemoveUser(ctx, "nobody@example.com"); err == nil {
		t.Error("RemoveUser(unknown) should fail")
	}
}

func TestAPIBackend_NonAdminRejected(t *testing.T) {
	srv, local := liveServer(t)
	ctx := context.Background()
	if _, err := local.AddUser(ctx, "bob@example.com", testPassword, false); err != nil {
		t.Fatal(err)
	}

	client, _ := connection.NewClient(srv.URL, connection.WithTransport(srv.Client().Transport))
	b, err := NewAPIBackend(ctx, client, "bob@example.com", testPassword)
	if err != nil {
		t.Fatalf("login as a regular user should succeed: %v", err)
	}
	_, err = b.ListUsers(ctx)
	var apiErr *connection.APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 403 {
		t.Errorf("ListUsers() as non-admin = %v, want 403", err)
	}
}
