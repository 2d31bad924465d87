// Package storetest is a conformance suite shared by every storage backend.
//
// A backend test calls Run with a constructor returning a fresh, empty
// store. Each subtest gets its own store.
package storetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/core/service"
)

// Factory opens a fresh, empty store. Cleanup is registered on t.
type Factory func(t *testing.T) service.Store

// Run executes the full suite against stores produced by open.
func Run(t *testing.T, open Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s service.Store)
	}{
		{"Users", testUsers},
		{"UserUpdate", testUserUpdate},
		{"Locations", testLocations},
		{"FindLocationsByPath", testFindLocationsByPath},
		{"Permissions", testPermissions},
		{"CascadeOnUserDelete", testCascadeOnUserDelete},
		{"CascadeOnLocationDelete", testCascadeOnLocationDelete},
		{"Sessions", testSessions},
		{"SessionExpiry", testSessionExpiry},
		{"SessionsByUser", testSessionsByUser},
		{"DeleteExpiredSessions", testDeleteExpiredSessions},
		{"TouchDeleteRace", testTouchDeleteRace},
		{"CanceledContext", testCanceledContext},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, open(t))
		})
	}
}

var epoch = time.Unix(1_700_000_000, 0)

func mustUser(t *testing.T, s service.Store, email string) *domain.User {
	t.Helper()
	u := domain.NewUser(email, "$argon2id$stub", false, epoch)
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s): %v", email, err)
	}
	return u
}

func mustLocation(t *testing.T, s service.Store, path string, open bool) *domain.Location {
	t.Helper()
	loc := domain.NewLocation(path, open, epoch)
	if err := s.CreateLocation(context.Background(), loc); err != nil {
		t.Fatalf("CreateLocation(%s): %v", path, err)
	}
	return loc
}

func mustSession(t *testing.T, s service.Store, userID string, now time.Time) *domain.Session {
	t.Helper()
	_, hash, err := domain.GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	session, err := domain.NewSession(userID, hash, now)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	session.IPAddress = "192.0.2.1"
	session.UserAgent = "storetest"
	if err := s.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return session
}

func wantErr(t *testing.T, op string, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("%s error = %v, want %v", op, err, want)
	}
}

func testUsers(t *testing.T, s service.Store) {
	ctx := context.Background()

	alice := mustUser(t, s, "alice@example.com")
	bob := domain.NewUser("bob@example.com", "h", true, epoch.Add(time.Second))
	if err := s.CreateUser(ctx, bob); err != nil {
		t.Fatalf("CreateUser(bob): %v", err)
	}

	got, err := s.GetUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != alice.Email || got.PasswordHash != alice.PasswordHash || got.IsAdmin {
		t.Errorf("GetUser() = %+v, want %+v", got, alice)
	}

	byEmail, err := s.GetUserByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail.ID != bob.ID || !byEmail.IsAdmin {
		t.Errorf("GetUserByEmail() = %+v, want bob", byEmail)
	}

	dup := domain.NewUser("alice@example.com", "h", false, epoch)
	wantErr(t, "CreateUser(duplicate)", s.CreateUser(ctx, dup), domain.ErrDuplicateEmail)

	_, err = s.GetUser(ctx, domain.NewID())
	wantErr(t, "GetUser(missing)", err, domain.ErrUserNotFound)
	_, err = s.GetUserByEmail(ctx, "nobody@example.com")
	wantErr(t, "GetUserByEmail(missing)", err, domain.ErrUserNotFound)

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 || users[0].ID != alice.ID || users[1].ID != bob.ID {
		t.Fatalf("ListUsers() = %v, want [alice bob]", users)
	}

	if err := s.DeleteUser(ctx, alice.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	wantErr(t, "DeleteUser(again)", s.DeleteUser(ctx, alice.ID), domain.ErrUserNotFound)
	_, err = s.GetUserByEmail(ctx, "alice@example.com")
	wantErr(t, "GetUserByEmail(deleted)", err, domain.ErrUserNotFound)

	// The address is free again.
	mustUser(t, s, "alice@example.com")
}

func testUserUpdate(t *testing.T, s service.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	mustUser(t, s, "bob@example.com")

	alice.PasswordHash = "new-hash"
	alice.IsAdmin = true
	if err := s.UpdateUser(ctx, alice); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, _ := s.GetUser(ctx, alice.ID)
	if got.PasswordHash != "new-hash" || !got.IsAdmin {
		t.Errorf("UpdateUser not persisted: %+v", got)
	}

	alice.Email = "bob@example.com"
	wantErr(t, "UpdateUser(taken email)", s.UpdateUser(ctx, alice), domain.ErrDuplicateEmail)

	ghost := domain.NewUser("ghost@example.com", "h", false, epoch)
	wantErr(t, "UpdateUser(missing)", s.UpdateUser(ctx, ghost), domain.ErrUserNotFound)
}

func testLocations(t *testing.T, s service.Store) {
	ctx := context.Background()

	a := mustLocation(t, s, "/a", false)
	b := mustLocation(t, s, "/b", true)
	if a.Seq == 0 || b.Seq <= a.Seq {
		t.Fatalf("Seq not increasing: a=%d b=%d", a.Seq, b.Seq)
	}

	dup := domain.NewLocation("/a", true, epoch)
	wantErr(t, "CreateLocation(duplicate)", s.CreateLocation(ctx, dup), domain.ErrDuplicateLocation)

	got, err := s.GetLocation(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetLocation: %v", err)
	}
	if got.Path != "/b" || !got.OpenAccess || got.Seq != b.Seq {
		t.Errorf("GetLocation() = %+v, want %+v", got, b)
	}

	got.OpenAccess = false
	if err := s.UpdateLocation(ctx, got); err != nil {
		t.Fatalf("UpdateLocation: %v", err)
	}
	got, _ = s.GetLocation(ctx, b.ID)
	if got.OpenAccess {
		t.Error("UpdateLocation not persisted")
	}

	missing := domain.NewLocation("/missing", false, epoch)
	wantErr(t, "UpdateLocation(missing)", s.UpdateLocation(ctx, missing), domain.ErrLocationNotFound)
	_, err = s.GetLocation(ctx, missing.ID)
	wantErr(t, "GetLocation(missing)", err, domain.ErrLocationNotFound)

	if err := s.DeleteLocation(ctx, a.ID); err != nil {
		t.Fatalf("DeleteLocation: %v", err)
	}
	wantErr(t, "DeleteLocation(again)", s.DeleteLocation(ctx, a.ID), domain.ErrLocationNotFound)

	// A re-added path gets a fresh, larger Seq.
	again := mustLocation(t, s, "/a", false)
	if again.Seq <= b.Seq {
		t.Errorf("re-added Seq = %d, want > %d", again.Seq, b.Seq)
	}

	locs, err := s.ListLocations(ctx)
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(locs) != 2 || locs[0].ID != b.ID || locs[1].ID != again.ID {
		t.Fatalf("ListLocations() = %v, want [/b /a] by Seq", locs)
	}
}

func testFindLocationsByPath(t *testing.T, s service.Store) {
	ctx := context.Background()
	root := mustLocation(t, s, "/", false)
	ab := mustLocation(t, s, "/a/b", false)
	mustLocation(t, s, "/a/bc", false)

	found, err := s.FindLocationsByPath(ctx, domain.CandidatePaths("/a/b/c"))
	if err != nil {
		t.Fatalf("FindLocationsByPath: %v", err)
	}
	ids := make([]string, 0, len(found))
	for _, l := range found {
		ids = append(ids, l.ID)
	}
	sort.Strings(ids)
	want := []string{root.ID, ab.ID}
	sort.Strings(want)
	if len(ids) != 2 || ids[0] != want[0] || ids[1] != want[1] {
		t.Fatalf("FindLocationsByPath() = %v, want / and /a/b", found)
	}

	none, err := s.FindLocationsByPath(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Fatalf("FindLocationsByPath(nil) = %v, %v", none, err)
	}
}

func testPermissions(t *testing.T, s service.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	v := mustUser(t, s, "bob@example.com")
	loc := mustLocation(t, s, "/private", false)

	if ok, _ := s.HasPermission(ctx, loc.ID, u.ID); ok {
		t.Fatal("HasPermission before grant")
	}
	for i := 0; i < 2; i++ {
		if err := s.Grant(ctx, loc.ID, u.ID); err != nil {
			t.Fatalf("Grant #%d: %v", i, err)
		}
	}
	if err := s.Grant(ctx, loc.ID, v.ID); err != nil {
		t.Fatalf("Grant(bob): %v", err)
	}
	if ok, err := s.HasPermission(ctx, loc.ID, u.ID); err != nil || !ok {
		t.Fatalf("HasPermission() = %v, %v; want true", ok, err)
	}

	allowed, err := s.AllowedUsers(ctx, loc.ID)
	if err != nil {
		t.Fatalf("AllowedUsers: %v", err)
	}
	if len(allowed) != 2 {
		t.Fatalf("AllowedUsers() = %v, want 2 users", allowed)
	}

	wantErr(t, "Grant(missing location)", s.Grant(ctx, domain.NewID(), u.ID), domain.ErrLocationNotFound)
	wantErr(t, "Grant(missing user)", s.Grant(ctx, loc.ID, domain.NewID()), domain.ErrUserNotFound)

	if err := s.Revoke(ctx, loc.ID, u.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	wantErr(t, "Revoke(again)", s.Revoke(ctx, loc.ID, u.ID), domain.ErrPermissionNotFound)
	if ok, _ := s.HasPermission(ctx, loc.ID, u.ID); ok {
		t.Fatal("HasPermission after revoke")
	}
	if ok, _ := s.HasPermission(ctx, loc.ID, v.ID); !ok {
		t.Fatal("revoke affected another user")
	}
}

func testCascadeOnUserDelete(t *testing.T, s service.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	l1 := mustLocation(t, s, "/one", false)
	l2 := mustLocation(t, s, "/two", false)
	_ = s.Grant(ctx, l1.ID, u.ID)
	_ = s.Grant(ctx, l2.ID, u.ID)

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	for _, l := range []*domain.Location{l1, l2} {
		allowed, err := s.AllowedUsers(ctx, l.ID)
		if err != nil {
			t.Fatalf("AllowedUsers: %v", err)
		}
		if len(allowed) != 0 {
			t.Errorf("dangling permission on %s: %v", l.Path, allowed)
		}
	}
}

func testCascadeOnLocationDelete(t *testing.T, s service.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	loc := mustLocation(t, s, "/private", false)
	_ = s.Grant(ctx, loc.ID, u.ID)

	if err := s.DeleteLocation(ctx, loc.ID); err != nil {
		t.Fatalf("DeleteLocation: %v", err)
	}
	again := mustLocation(t, s, "/private", false)
	if ok, _ := s.HasPermission(ctx, loc.ID, u.ID); ok {
		t.Error("permission outlived its location")
	}
	if ok, _ := s.HasPermission(ctx, again.ID, u.ID); ok {
		t.Error("permission carried over to a re-added path")
	}
}

func testSessions(t *testing.T, s service.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	session := mustSession(t, s, u.ID, epoch)

	later := epoch.Add(time.Minute)
	got, err := s.TouchSession(ctx, session.TokenHash, later, time.Hour)
	if err != nil {
		t.Fatalf("TouchSession: %v", err)
	}
	if got.UserID != u.ID || got.ID != session.ID {
		t.Errorf("TouchSession() = %+v, want the stored session", got)
	}
	if got.LastSeen != later.UnixMilli() {
		t.Errorf("LastSeen = %d, want %d", got.LastSeen, later.UnixMilli())
	}

	// LastSeen never moves backwards.
	got, _ = s.TouchSession(ctx, session.TokenHash, epoch, time.Hour)
	if got.LastSeen != later.UnixMilli() {
		t.Errorf("LastSeen moved backwards to %d", got.LastSeen)
	}

	_, err = s.TouchSession(ctx, domain.HashToken("wwtk_unknown"), later, time.Hour)
	wantErr(t, "TouchSession(unknown)", err, domain.ErrInvalidToken)

	if n, _ := s.CountSessions(ctx); n != 1 {
		t.Errorf("CountSessions() = %d, want 1", n)
	}

	ok, err := s.DeleteSession(ctx, session.TokenHash)
	if err != nil || !ok {
		t.Fatalf("DeleteSession() = %v, %v; want true", ok, err)
	}
	ok, err = s.DeleteSession(ctx, session.TokenHash)
	if err != nil || ok {
		t.Fatalf("second DeleteSession() = %v, %v; want false, nil", ok, err)
	}
	_, err = s.TouchSession(ctx, session.TokenHash, later, time.Hour)
	wantErr(t, "TouchSession(deleted)", err, domain.ErrInvalidToken)
}

func testSessionExpiry(t *testing.T, s service.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")

	idle := mustSession(t, s, u.ID, epoch)
	_, err := s.TouchSession(ctx, idle.TokenHash, epoch.Add(2*time.Hour), time.Hour)
	wantErr(t, "TouchSession(idle)", err, domain.ErrExpiredToken)
	_, err = s.TouchSession(ctx, idle.TokenHash, epoch.Add(2*time.Hour), time.Hour)
	wantErr(t, "TouchSession(idle, again)", err, domain.ErrInvalidToken)

	_, hash, _ := domain.GenerateToken()
	capped, _ := domain.NewSession(u.ID, hash, epoch)
	capped.SetMaxLifetime(30 * time.Minute)
	if err := s.CreateSession(ctx, capped); err != nil {
		t.Fatalf("CreateSession(capped): %v", err)
	}
	if _, err := s.TouchSession(ctx, hash, epoch.Add(20*time.Minute), time.Hour); err != nil {
		t.Fatalf("TouchSession(capped, early): %v", err)
	}
	_, err = s.TouchSession(ctx, hash, epoch.Add(31*time.Minute), time.Hour)
	wantErr(t, "TouchSession(capped, late)", err, domain.ErrExpiredToken)
}

func testSessionsByUser(t *testing.T, s service.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")
	mustSession(t, s, alice.ID, epoch)
	mustSession(t, s, alice.ID, epoch)
	keep := mustSession(t, s, bob.ID, epoch)

	n, err := s.DeleteSessionsByUser(ctx, alice.ID)
	if err != nil || n != 2 {
		t.Fatalf("DeleteSessionsByUser() = %d, %v; want 2", n, err)
	}
	n, err = s.DeleteSessionsByUser(ctx, alice.ID)
	if err != nil || n != 0 {
		t.Fatalf("second DeleteSessionsByUser() = %d, %v; want 0", n, err)
	}
	if _, err := s.TouchSession(ctx, keep.TokenHash, epoch, time.Hour); err != nil {
		t.Fatalf("bob's session was removed: %v", err)
	}
}

func testDeleteExpiredSessions(t *testing.T, s service.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")
	mustSession(t, s, u.ID, epoch)
	mustSession(t, s, u.ID, epoch)
	fresh := mustSession(t, s, u.ID, epoch.Add(50*time.Minute))

	n, err := s.DeleteExpiredSessions(ctx, epoch.Add(70*time.Minute), time.Hour)
	if err != nil || n != 2 {
		t.Fatalf("DeleteExpiredSessions() = %d, %v; want 2", n, err)
	}
	if c, _ := s.CountSessions(ctx); c != 1 {
		t.Errorf("CountSessions() = %d, want 1", c)
	}
	if _, err := s.TouchSession(ctx, fresh.TokenHash, epoch.Add(70*time.Minute), time.Hour); err != nil {
		t.Errorf("fresh session removed: %v", err)
	}
	// The removed sessions no longer count against their user.
	if n, _ := s.DeleteSessionsByUser(ctx, u.ID); n != 1 {
		t.Errorf("DeleteSessionsByUser() = %d, want 1", n)
	}
}

// testTouchDeleteRace checks that no touch succeeds once DeleteSession has
// returned.
func testTouchDeleteRace(t *testing.T, s service.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "alice@example.com")

	for round := 0; round < 10; round++ {
		session := mustSession(t, s, u.ID, time.Now())

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			deleted bool
			bad     int
		)
		stop := make(chan struct{})
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					mu.Lock()
					after := deleted
					mu.Unlock()
					_, err := s.TouchSession(ctx, session.TokenHash, time.Now(), time.Hour)
					if after && err == nil {
						mu.Lock()
						bad++
						mu.Unlock()
					}
				}
			}()
		}

		time.Sleep(2 * time.Millisecond)
		if _, err := s.DeleteSession(ctx, session.TokenHash); err != nil {
			t.Fatalf("DeleteSession: %v", err)
		}
		mu.Lock()
		deleted = true
		mu.Unlock()
		time.Sleep(2 * time.Millisecond)
		close(stop)
		wg.Wait()

		if bad > 0 {
			t.Fatalf("round %d: %d touches succeeded after delete", round, bad)
		}
	}
}

func testCanceledContext(t *testing.T, s service.Store) {
	u := mustUser(t, s, "alice@example.com")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.GetUser(ctx, u.ID); !domain.IsStoreFailure(err) {
		t.Errorf("GetUser(canceled) error = %v, want a store failure", err)
	}
	if _, err := s.FindLocationsByPath(ctx, []string{"/"}); !domain.IsStoreFailure(err) {
		t.Errorf("FindLocationsByPath(canceled) error = %v, want a store failure", err)
	}
	if _, err := s.TouchSession(ctx, domain.HashToken("wwtk_x"), epoch, time.Hour); !domain.IsStoreFailure(err) {
		t.Errorf("TouchSession(canceled) error = %v, want a store failure", err)
	}
}

func testPing(t *testing.T, s service.Store) {
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
