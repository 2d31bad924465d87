package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/storage/storetest"
)

var _ service.Store = (*Store)(nil)

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) service.Store {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestStore_Closed(t *testing.T) {
	s := New()
	_ = s.Close()

	if err := s.Ping(context.Background()); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Fatalf("Ping() after Close = %v, want ErrStoreUnavailable", err)
	}
	if _, err := s.GetUser(context.Background(), "x"); !domain.IsStoreFailure(err) {
		t.Fatalf("GetUser() after Close = %v, want a store failure", err)
	}
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := domain.NewUser("alice@example.com", "h", false, time.Now())
	_ = s.CreateUser(ctx, u)
	u.IsAdmin = true

	got, _ := s.GetUser(ctx, u.ID)
	if got.IsAdmin {
		t.Fatal("store shares state with the caller's user")
	}
	got.Email = "mallory@example.com"
	again, _ := s.GetUser(ctx, u.ID)
	if again.Email != "alice@example.com" {
		t.Fatal("store shares state with returned users")
	}
}

func TestStore_IndexesStayConsistent(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := domain.NewUser("alice@example.com", "h", false, time.Now())
	_ = s.CreateUser(ctx, u)
	loc := domain.NewLocation("/a", false, time.Now())
	_ = s.CreateLocation(ctx, loc)
	_ = s.Grant(ctx, loc.ID, u.ID)

	_ = s.DeleteLocation(ctx, loc.ID)
	if n := s.grantsByUser.Count(u.ID); n != 0 {
		t.Errorf("grantsByUser still holds %d entries", n)
	}
	if s.paths.Has("/a") {
		t.Error("path index still holds a deleted location")
	}

	_ = s.DeleteUser(ctx, u.ID)
	if s.emails.Has("alice@example.com") {
		t.Error("email index still holds a deleted user")
	}
}
