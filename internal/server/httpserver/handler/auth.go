package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
	"github.com/nguyendn/wwwhisper/internal/telemetry/metric"
)

type ctxKey int

const resolutionKey ctxKey = iota

// withResolution stores the caller's resolved session in the context.
func withResolution(ctx context.Context, res *service.Resolution) context.Context {
	return context.WithValue(ctx, resolutionKey, res)
}

// ResolutionFromContext returns the session resolved by RequireAdmin.
func ResolutionFromContext(ctx context.Context) *service.Resolution {
	res, _ := ctx.Value(resolutionKey).(*service.Resolution)
	return res
}

// resolve maps the session cookie to its owner. It returns nil, nil when
// there is no usable session.
func (h *Handler) resolve(r *http.Request) (*service.Resolution, error) {
	if res := ResolutionFromContext(r.Context()); res != nil {
		return res, nil
	}
	return h.authz.Resolve(r.Context(), h.sessionToken(r))
}

// csrfBinding is what a CSRF token is bound to for this request: the
// session ID when logged in, the anonymous cookie otherwise.
func csrfBinding(r *http.Request, res *service.Resolution) string {
	if res != nil {
		return res.Session.ID
	}
	return anonBinding(r)
}

func (h *Handler) verifyCSRF(r *http.Request, res *service.Resolution) error {
	binding := csrfBinding(r, res)
	if binding == "" {
		return domain.ErrCSRFInvalid.WithDetails("no csrf binding cookie")
	}
	return h.csrf.Verify(r.Header.Get(HeaderCSRFToken), binding)
}

// IsAuthorized handles GET /auth/api/is-authorized/?path=<p>.
//
// 200 carries the user's email in the User header. 401 asks the proxy to
// send the visitor to the login page. 403 covers every denial, including
// store failures.
func (h *Handler) IsAuthorized(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("path") {
		h.writeError(w, r, domain.ErrBadRequest.WithDetails("path parameter is required"))
		return
	}
	path := q.Get("path")

	res := h.authz.Authorize(r.Context(), h.sessionToken(r), path)

	log := logger.L(r.Context()).With("path", path, "decision", res.Decision.String(), "reason", string(res.Reason))
	if res.User != nil {
		log = log.With("user", res.User.Email)
	}
	log.Debug("authorization decision")

	switch res.Decision {
	case domain.DecisionAllowed:
		w.Header().Set(HeaderUser, res.User.Email)
		h.writeJSON(w, r, http.StatusOK, IsAuthorizedResponse{Email: res.User.Email})
	case domain.DecisionUnauthenticated:
		h.writeError(w, r, domain.ErrUnauthenticated)
	default:
		if res.User != nil {
			w.Header().Set(HeaderUser, res.User.Email)
		}
		h.writeError(w, r, domain.ErrPermissionDenied)
	}
}

// Login handles POST /auth/api/login/.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	clientIP := ClientIP(r)
	if err := h.limiter.Allow(clientIP); err != nil {
		h.metrics.ObserveLogin(metric.LoginRateLimited)
		logger.L(r.Context()).Warn("login rate limited", "client_ip", clientIP)
		w.Header().Set("Retry-After", "5")
		h.handleServiceError(w, r, err)
		return
	}

	current, err := h.resolve(r)
	if err != nil {
		h.metrics.ObserveLogin(metric.LoginError)
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.verifyCSRF(r, current); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var req LoginRequest
	err = decodeBody(w, r, &req, func(get func(string) string) {
		req.Email, req.Password = get("email"), get("password")
	})
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.handleServiceError(w, r, domain.ErrBadRequest.WithDetails("email and password are required"))
		return
	}

	ctx, cancel := h.storeCtx(r)
	defer cancel()

	user, err := h.creds.VerifyCredentials(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.metrics.ObserveLogin(metric.LoginFailure)
			logger.L(r.Context()).Info("login failed", "client_ip", clientIP)
		} else {
			h.metrics.ObserveLogin(metric.LoginError)
		}
		h.handleServiceError(w, r, err)
		return
	}

	created, err := h.sessions.CreateSession(ctx, &service.CreateSessionRequest{
		UserID:    user.ID,
		ClientIP:  clientIP,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.metrics.ObserveLogin(metric.LoginError)
		h.handleServiceError(w, r, err)
		return
	}

	// The previous session, if any, ends with the new login.
	if old := h.sessionToken(r); old != "" {
		if err := h.sessions.Invalidate(ctx, old); err != nil {
			logger.L(r.Context()).Warn("failed to end previous session", "error", err)
		}
	}

	h.limiter.Delete(clientIP)
	h.metrics.ObserveLogin(metric.LoginSuccess)
	logger.L(r.Context()).Info("login succeeded", "user", user.Email, "session_id", created.Session.ID, "client_ip", clientIP)

	h.setSessionCookie(w, created.Token)
	h.writeJSON(w, r, http.StatusOK, WhoAmIResponse{
		ID:      domain.URN(user.ID),
		Email:   user.Email,
		IsAdmin: h.authz.IsAdmin(user),
	})
}

// Logout handles POST /auth/api/logout/. It succeeds without a session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	current, err := h.resolve(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.verifyCSRF(r, current); err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	if tok := h.sessionToken(r); tok != "" {
		ctx, cancel := h.storeCtx(r)
		defer cancel()
		if err := h.sessions.Invalidate(ctx, tok); err != nil {
			h.handleServiceError(w, r, domain.StoreError("invalidate session", err))
			return
		}
	}
	if current != nil {
		logger.L(r.Context()).Info("logout", "user", current.User.Email, "session_id", current.Session.ID)
	}

	h.clearSessionCookie(w)
	h.writeJSON(w, r, http.StatusOK, struct{}{})
}

// CSRFToken handles GET and POST /auth/api/csrftoken/.
func (h *Handler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	current, err := h.resolve(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	var binding string
	if current != nil {
		binding = current.Session.ID
	} else if binding, err = h.ensureAnonBinding(w, r); err != nil {
		h.handleServiceError(w, r, domain.ErrInternal.WithCause(err))
		return
	}

	tok, err := h.csrf.Issue(binding)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, CSRFTokenResponse{CSRFToken: tok})
}

// WhoAmI handles GET /auth/api/whoami/.
func (h *Handler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	current, err := h.resolve(r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if current == nil {
		h.writeError(w, r, domain.ErrUnauthenticated)
		return
	}
	h.writeJSON(w, r, http.StatusOK, WhoAmIResponse{
		ID:      domain.URN(current.User.ID),
		Email:   current.User.Email,
		IsAdmin: h.authz.IsAdmin(current.User),
	})
}
