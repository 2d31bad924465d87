package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/storage/memory"
)

// LocationCounts defines the registry sizes for benchmarking.
var LocationCounts = []int{10, 100, 1000, 10000}

// SessionCounts defines the live session counts for benchmarking.
var SessionCounts = []int{1000, 10000, 100000}

// fixture is a fully wired authorization stack over the memory store.
type fixture struct {
	store     *memory.Store
	sessions  *service.SessionService
	locations *service.LocationService
	authz     *service.Authorizer

	users  []*domain.User
	tokens []string
}

func newFixture(b *testing.B) *fixture {
	b.Helper()
	store := memory.New()
	sessions := service.NewSessionService(store, store, service.SessionConfig{IdleTimeout: 24 * time.Hour})
	locations := service.NewLocationService(store)
	return &fixture{
		store:     store,
		sessions:  sessions,
		locations: locations,
		authz:     service.NewAuthorizer(sessions, locations, service.NewAdminSet(nil), service.AuthorizerConfig{}),
	}
}

// addUsers creates n users, each with one live session.
func (f *fixture) addUsers(b *testing.B, n int) {
	b.Helper()
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < n; i++ {
		u := domain.NewUser(fmt.Sprintf("user-%d@example.com", i), "unused", false, now)
		if err := f.store.CreateUser(ctx, u); err != nil {
			b.Fatalf("CreateUser: %v", err)
		}
		resp, err := f.sessions.CreateSession(ctx, &service.CreateSessionRequest{UserID: u.ID})
		if err != nil {
			b.Fatalf("CreateSession: %v", err)
		}
		f.users = append(f.users, u)
		f.tokens = append(f.tokens, resp.Token)
	}
}

// addLocations registers n locations spread over a two-level tree and
// grants every user on each one. Returns the registered paths.
func (f *fixture) addLocations(b *testing.B, n int) []string {
	b.Helper()
	ctx := context.Background()
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("/section-%d/page-%d", i%50, i)
		loc, err := f.locations.AddLocation(ctx, &service.AddLocationRequest{Path: path})
		if err != nil {
			b.Fatalf("AddLocation(%s): %v", path, err)
		}
		for _, u := range f.users {
			if err := f.locations.Grant(ctx, loc.ID, u.ID); err != nil {
				b.Fatalf("Grant: %v", err)
			}
		}
		paths = append(paths, path)
	}
	return paths
}
