package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

const (
	locationsPath = "/admin/api/locations/"
	usersPath     = "/admin/api/users/"
)

func (h *Handler) userResponse(u *domain.User) *UserResponse {
	return &UserResponse{
		ID:      domain.URN(u.ID),
		Self:    h.cfg.SiteURL + usersPath + u.ID + "/",
		Email:   u.Email,
		IsAdmin: h.authz.IsAdmin(u),
	}
}

func (h *Handler) locationResponse(ctx context.Context, loc *domain.Location) (*LocationResponse, error) {
	ids, err := h.locations.AllowedUsers(ctx, loc.ID)
	if err != nil {
		return nil, err
	}
	allowed := make([]*UserResponse, 0, len(ids))
	for _, id := range ids {
		u, err := h.creds.GetUser(ctx, id)
		if err != nil {
			// Removed between the two reads.
			if errors.Is(err, domain.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		allowed = append(allowed, h.userResponse(u))
	}
	return &LocationResponse{
		ID:           domain.URN(loc.ID),
		Self:         h.cfg.SiteURL + locationsPath + loc.ID + "/",
		Path:         loc.Path,
		OpenAccess:   loc.OpenAccess,
		AllowedUsers: allowed,
	}, nil
}

func (h *Handler) writeLocation(ctx context.Context, w http.ResponseWriter, r *http.Request, status int, loc *domain.Location) {
	resp, err := h.locationResponse(ctx, loc)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, status, resp)
}

// pathID parses the {name} path value as a bare UUID or urn:uuid form.
func pathID(r *http.Request, name string, notFound *domain.DomainError) (string, error) {
	raw := r.PathValue(name)
	id, ok := domain.ParseID(raw)
	if !ok {
		return "", notFound.WithDetails("malformed id " + raw)
	}
	return id, nil
}

// ListLocations handles GET /admin/api/locations/.
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	locs, err := h.locations.ListLocations(ctx)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	out := ListLocationsResponse{Locations: make([]*LocationResponse, 0, len(locs))}
	for _, loc := range locs {
		resp, err := h.locationResponse(ctx, loc)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		out.Locations = append(out.Locations, resp)
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// CreateLocation handles POST /admin/api/locations/.
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := decodeBody(w, r, &req, nil); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	ctx, cancel := h.storeCtx(r)
	defer cancel()

	loc, err := h.locations.AddLocation(ctx, &service.AddLocationRequest{Path: req.Path, OpenAccess: req.OpenAccess})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("location added", "location", loc.Path, "open_access", loc.OpenAccess)
	h.writeLocation(ctx, w, r, http.StatusCreated, loc)
}

// GetLocation handles GET /admin/api/locations/{id}/.
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrLocationNotFound)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	loc, err := h.locations.GetLocation(ctx, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeLocation(ctx, w, r, http.StatusOK, loc)
}

// DeleteLocation handles DELETE /admin/api/locations/{id}/.
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrLocationNotFound)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	if err := h.locations.RemoveLocation(ctx, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("location removed", "location_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// OpenLocation handles PUT /admin/api/locations/{id}/open-access/.
func (h *Handler) OpenLocation(w http.ResponseWriter, r *http.Request) {
	h.setOpenAccess(w, r, true)
}

// CloseLocation handles DELETE /admin/api/locations/{id}/open-access/.
func (h *Handler) CloseLocation(w http.ResponseWriter, r *http.Request) {
	h.setOpenAccess(w, r, false)
}

func (h *Handler) setOpenAccess(w http.ResponseWriter, r *http.Request, open bool) {
	id, err := pathID(r, "id", domain.ErrLocationNotFound)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	loc, err := h.locations.SetOpenAccess(ctx, id, open)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("location access changed", "location", loc.Path, "open_access", open)
	h.writeLocation(ctx, w, r, http.StatusOK, loc)
}

// GrantAccess handles PUT /admin/api/locations/{id}/allowed-users/{uid}/.
func (h *Handler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	locID, userID, ok := h.grantIDs(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	if err := h.locations.Grant(ctx, locID, userID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	user, err := h.creds.GetUser(ctx, userID)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("access granted", "location_id", locID, "grantee", user.Email)
	h.writeJSON(w, r, http.StatusOK, h.userResponse(user))
}

// RevokeAccess handles DELETE /admin/api/locations/{id}/allowed-users/{uid}/.
func (h *Handler) RevokeAccess(w http.ResponseWriter, r *http.Request) {
	locID, userID, ok := h.grantIDs(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	if err := h.locations.Revoke(ctx, locID, userID); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("access revoked", "location_id", locID, "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantIDs(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	locID, err := pathID(r, "id", domain.ErrLocationNotFound)
	if err != nil {
		h.handleServiceError(w, r, err)
		return "", "", false
	}
	userID, err := pathID(r, "uid", domain.ErrUserNotFound)
	if err != nil {
		h.handleServiceError(w, r, err)
		return "", "", false
	}
	return locID, userID, true
}

// ListUsers handles GET /admin/api/users/.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	users, err := h.creds.ListUsers(ctx)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	out := ListUsersResponse{Users: make([]*UserResponse, 0, len(users))}
	for _, u := range users {
		out.Users = append(out.Users, h.userResponse(u))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

// CreateUser handles POST /admin/api/users/.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeBody(w, r, &req, nil); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	ctx, cancel := h.storeCtx(r)
	defer cancel()

	user, err := h.creds.CreateUser(ctx, &service.CreateUserRequest{
		Email:    req.Email,
		Password: req.Password,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("user created", "new_user", user.Email, "is_admin", user.IsAdmin)
	h.writeJSON(w, r, http.StatusCreated, h.userResponse(user))
}

// GetUser handles GET /admin/api/users/{id}/.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrUserNotFound)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	user, err := h.creds.GetUser(ctx, id)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, h.userResponse(user))
}

// DeleteUser handles DELETE /admin/api/users/{id}/. Grants and sessions of
// the user go with it.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", domain.ErrUserNotFound)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	ctx, cancel := h.storeCtx(r)
	defer cancel()

	if err := h.creds.RemoveUser(ctx, id); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	logger.L(r.Context()).Info("user removed", "user_id", id)
	w.WriteHeader(http.StatusNoContent)
}
