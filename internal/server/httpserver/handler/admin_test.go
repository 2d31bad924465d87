package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
)

// adminRequest builds a request as admin u would send it through the guards.
func (f *fixture) adminRequest(t *testing.T, tok, id, method, target, body string) *http.Request {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	withSession(r, tok)
	r.Header.Set(HeaderCSRFToken, f.csrfFor(t, id))
	return r
}

// guarded runs fn behind RequireAdmin and RequireCSRF.
func (f *fixture) guarded(fn http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.h.RequireAdmin(f.h.RequireCSRF(fn)).ServeHTTP(rec, r)
	return rec
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t)
	admin := f.mustUser(t, "root@example.com", true)
	user := f.mustUser(t, "alice@example.com", false)
	adminTok, adminID := f.mustSession(t, admin)
	userTok, userID := f.mustSession(t, user)

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{"admin", f.adminRequest(t, adminTok, adminID, http.MethodGet, "/admin/api/users/", ""), http.StatusOK},
		{"non admin", f.adminRequest(t, userTok, userID, http.MethodGet, "/admin/api/users/", ""), http.StatusForbidden},
		{"anonymous", httptest.NewRequest(http.MethodGet, "/admin/api/users/", nil), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.guarded(f.h.ListUsers, tt.req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireCSRF_AdminMutation(t *testing.T) {
	f := newFixture(t)
	admin := f.mustUser(t, "root@example.com", true)
	tok, _ := f.mustSession(t, admin)

	r := withSession(httptest.NewRequest(http.MethodPost, "/admin/api/locations/", strings.NewReader(`{"path":"/a"}`)), tok)
	if rec := f.guarded(f.h.CreateLocation, r); rec.Code != http.StatusForbidden {
		t.Fatalf("POST without CSRF status = %d, want 403", rec.Code)
	}

	// A token bound to some other session is rejected.
	r = withSession(httptest.NewRequest(http.MethodPost, "/admin/api/locations/", strings.NewReader(`{"path":"/a"}`)), tok)
	r.Header.Set(HeaderCSRFToken, f.csrfFor(t, "wwss-another-session"))
	if rec := f.guarded(f.h.CreateLocation, r); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign CSRF status = %d, want 403", rec.Code)
	}
}

func TestLocationsAPI(t *testing.T) {
	f := newFixture(t)
	admin := f.mustUser(t, "root@example.com", true)
	alice := f.mustUser(t, "alice@example.com", false)
	tok, sid := f.mustSession(t, admin)

	// Create.
	rec := f.guarded(f.h.CreateLocation, f.adminRequest(t, tok, sid, http.MethodPost, "/admin/api/locations/", `{"path":"/reports//2024/"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body %s)", rec.Code, rec.Body)
	}
	var loc LocationResponse
	if err := json.NewDecoder(rec.Body).Decode(&loc); err != nil {
		t.Fatal(err)
	}
	id, ok := domain.ParseID(loc.ID)
	if !ok || !strings.HasPrefix(loc.ID, domain.URNPrefix) {
		t.Fatalf("location id = %q", loc.ID)
	}
	if loc.Path != "/reports/2024" || loc.OpenAccess {
		t.Errorf("location = %+v", loc)
	}
	if loc.Self != "https://site.example.org/admin/api/locations/"+id+"/" {
		t.Errorf("self = %q", loc.Self)
	}

	// Duplicate.
	rec = f.guarded(f.h.CreateLocation, f.adminRequest(t, tok, sid, http.MethodPost, "/admin/api/locations/", `{"path":"/reports/2024"}`))
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	// Invalid.
	rec = f.guarded(f.h.CreateLocation, f.adminRequest(t, tok, sid, http.MethodPost, "/admin/api/locations/", `{"path":"/a/../b"}`))
	if rec.Code != http.StatusBadRequest || rec.Header().Get(HeaderErrorCode) != domain.ErrInvalidPattern.Code {
		t.Errorf("invalid pattern status = %d code = %q", rec.Code, rec.Header().Get(HeaderErrorCode))
	}

	// Grant, accepting the urn form.
	r := f.adminRequest(t, tok, sid, http.MethodPut, "/", "")
	r.SetPathValue("id", loc.ID)
	r.SetPathValue("uid", domain.URN(alice.ID))
	rec = f.guarded(f.h.GrantAccess, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("grant status = %d (body %s)", rec.Code, rec.Body)
	}
	if rec := isAuthorized(f, mustTok(t, f, alice), "/reports/2024/q1"); rec.Code != http.StatusOK {
		t.Errorf("is-authorized after grant = %d, want 200", rec.Code)
	}

	// Get shows the allowed user.
	r = f.adminRequest(t, tok, sid, http.MethodGet, "/", "")
	r.SetPathValue("id", id)
	rec = f.guarded(f.h.GetLocation, r)
	loc = LocationResponse{}
	_ = json.NewDecoder(rec.Body).Decode(&loc)
	if len(loc.AllowedUsers) != 1 || loc.AllowedUsers[0].Email != "alice@example.com" {
		t.Errorf("allowedUsers = %+v", loc.AllowedUsers)
	}

	// Open, close.
	r = f.adminRequest(t, tok, sid, http.MethodPut, "/", "")
	r.SetPathValue("id", id)
	rec = f.guarded(f.h.OpenLocation, r)
	loc = LocationResponse{}
	_ = json.NewDecoder(rec.Body).Decode(&loc)
	if rec.Code != http.StatusOK || !loc.OpenAccess {
		t.Errorf("open = %d %+v", rec.Code, loc)
	}
	r = f.adminRequest(t, tok, sid, http.MethodDelete, "/", "")
	r.SetPathValue("id", id)
	rec = f.guarded(f.h.CloseLocation, r)
	loc = LocationResponse{}
	_ = json.NewDecoder(rec.Body).Decode(&loc)
	if rec.Code != http.StatusOK || loc.OpenAccess {
		t.Errorf("close = %d %+v", rec.Code, loc)
	}

	// Revoke twice: the second is a 404.
	for i, want := range []int{http.StatusNoContent, http.StatusNotFound} {
		r = f.adminRequest(t, tok, sid, http.MethodDelete, "/", "")
		r.SetPathValue("id", id)
		r.SetPathValue("uid", alice.ID)
		if rec := f.guarded(f.h.RevokeAccess, r); rec.Code != want {
			t.Errorf("revoke #%d status = %d, want %d", i+1, rec.Code, want)
		}
	}

	// List.
	f.mustLocation(t, "/docs", true)
	rec = f.guarded(f.h.ListLocations, f.adminRequest(t, tok, sid, http.MethodGet, "/admin/api/locations/", ""))
	var list ListLocationsResponse
	_ = json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Locations) != 2 || list.Locations[0].Path != "/reports/2024" || list.Locations[1].Path != "/docs" {
		t.Errorf("list = %+v", list.Locations)
	}

	// Delete, then 404.
	for _, want := range []int{http.StatusNoContent, http.StatusNotFound} {
		r = f.adminRequest(t, tok, sid, http.MethodDelete, "/", "")
		r.SetPathValue("id", id)
		if rec := f.guarded(f.h.DeleteLocation, r); rec.Code != want {
			t.Errorf("delete status = %d, want %d", rec.Code, want)
		}
	}

	// Malformed IDs are 404s.
	r = f.adminRequest(t, tok, sid, http.MethodGet, "/", "")
	r.SetPathValue("id", "not-a-uuid")
	if rec := f.guarded(f.h.GetLocation, r); rec.Code != http.StatusNotFound {
		t.Errorf("malformed id status = %d, want 404", rec.Code)
	}
}

func mustTok(t *testing.T, f *fixture, u *domain.User) string {
	t.Helper()
	tok, _ := f.mustSession(t, u)
	return tok
}

func TestUsersAPI(t *testing.T) {
	f := newFixture(t)
	admin := f.mustUser(t, "root@example.com", true)
	tok, sid := f.mustSession(t, admin)

	rec := f.guarded(f.h.CreateUser, f.adminRequest(t, tok, sid, http.MethodPost, "/admin/api/users/",
		`{"email":" Alice@Example.COM ","password":"`+testPassword+`"}`))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d (body %s)", rec.Code, rec.Body)
	}
	var user UserResponse
	_ = json.NewDecoder(rec.Body).Decode(&user)
	if user.Email != "alice@example.com" || user.IsAdmin {
		t.Errorf("user = %+v", user)
	}
	id, _ := domain.ParseID(user.ID)

	errCases := []struct {
		name, body string
		want       int
	}{
		{"duplicate", `{"email":"alice@example.com","password":"` + testPassword + `"}`, http.StatusConflict},
		{"bad email", `{"email":"alice","password":"` + testPassword + `"}`, http.StatusBadRequest},
		{"weak password", `{"email":"bob@example.com","password":"short"}`, http.StatusBadRequest},
		{"bad json", `{"email":`, http.StatusBadRequest},
	}
	for _, tt := range errCases {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.guarded(f.h.CreateUser, f.adminRequest(t, tok, sid, http.MethodPost, "/admin/api/users/", tt.body))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	rec = f.guarded(f.h.ListUsers, f.adminRequest(t, tok, sid, http.MethodGet, "/admin/api/users/", ""))
	var list ListUsersResponse
	_ = json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Users) != 2 {
		t.Errorf("users = %+v", list.Users)
	}

	// Deleting a user ends its sessions and grants.
	alice, _ := f.creds.GetUser(t.Context(), id)
	aliceTok := mustTok(t, f, alice)
	loc := f.mustLocation(t, "/private", false)
	_ = f.locations.Grant(t.Context(), loc.ID, id)

	r := f.adminRequest(t, tok, sid, http.MethodDelete, "/", "")
	r.SetPathValue("id", user.ID)
	if rec := f.guarded(f.h.DeleteUser, r); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if _, err := f.sessions.Resolve(t.Context(), aliceTok); err == nil {
		t.Error("sessions of a removed user must be gone")
	}
	if ids, _ := f.locations.AllowedUsers(t.Context(), loc.ID); len(ids) != 0 {
		t.Errorf("grants of a removed user remain: %v", ids)
	}

	r = f.adminRequest(t, tok, sid, http.MethodGet, "/", "")
	r.SetPathValue("id", id)
	if rec := f.guarded(f.h.GetUser, r); rec.Code != http.StatusNotFound {
		t.Errorf("get removed user status = %d, want 404", rec.Code)
	}
}
