package handler

import (
	"net/http"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// RequireAdmin admits only requests carrying an admin session. The
// resolved session is available to next via ResolutionFromContext.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := h.authz.Resolve(r.Context(), h.sessionToken(r))
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		if res == nil {
			h.writeError(w, r, domain.ErrUnauthenticated)
			return
		}
		if !h.authz.IsAdmin(res.User) {
			logger.L(r.Context()).Warn("admin api denied", "user", res.User.Email, "path", r.URL.Path)
			h.writeError(w, r, domain.ErrPermissionDenied.WithDetails("admin required"))
			return
		}

		ctx := withResolution(r.Context(), res)
		ctx = logger.WithUser(ctx, res.User.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCSRF checks X-CSRFToken on state-changing methods.
func (h *Handler) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		res, err := h.resolve(r)
		if err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		if err := h.verifyCSRF(r, res); err != nil {
			h.handleServiceError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
