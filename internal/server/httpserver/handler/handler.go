package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/domain"
	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
	"github.com/nguyendn/wwwhisper/internal/telemetry/metric"
)

// Header names.
const (
	HeaderCSRFToken = "X-CSRFToken"
	HeaderErrorCode = "X-Error-Code"
	HeaderRequestID = "X-Request-ID"
	HeaderUser      = "User"
)

// maxBodyBytes caps JSON and form bodies.
const maxBodyBytes = 64 << 10

// Pinger reports store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the HTTP-facing settings.
type Config struct {
	// SiteURL prefixes the self links of admin resources.
	SiteURL string

	CookieName   string
	CookieDomain string
	CookieSecure bool

	// CookieMaxAge is the session cookie lifetime (0 = browser session).
	CookieMaxAge time.Duration

	// StoreTimeout bounds each store call made directly by a handler.
	StoreTimeout time.Duration
}

// Deps are the services the handlers call.
type Deps struct {
	Credentials *service.CredentialService
	Sessions    *service.SessionService
	Locations   *service.LocationService
	Authorizer  *service.Authorizer
	CSRF        *service.CSRFService
	LoginLimit  *service.RateLimiterRegistry // nil disables throttling
	Store       Pinger
	Metrics     *metric.Metrics // nil disables metrics
	Logger      logger.Logger
}

// Handler serves the auth, admin and health endpoints. Routing lives in
// package httpserver.
type Handler struct {
	creds     *service.CredentialService
	sessions  *service.SessionService
	locations *service.LocationService
	authz     *service.Authorizer
	csrf      *service.CSRFService
	limiter   *service.RateLimiterRegistry
	store     Pinger
	metrics   *metric.Metrics
	logger    logger.Logger
	cfg       Config
}

// New creates a Handler.
func New(deps Deps, cfg Config) *Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 2 * time.Second
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")

	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		creds:     deps.Credentials,
		sessions:  deps.Sessions,
		locations: deps.Locations,
		authz:     deps.Authorizer,
		csrf:      deps.CSRF,
		limiter:   deps.LoginLimit,
		store:     deps.Store,
		metrics:   deps.Metrics,
		logger:    log,
		cfg:       cfg,
	}
}

// storeCtx bounds a handler's direct store calls.
func (h *Handler) storeCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.cfg.StoreTimeout)
}

// writeJSON writes data as the response body.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L(r.Context()).Error("failed to encode response", "error", err)
	}
}

// writeError writes the error envelope for a domain error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, de *domain.DomainError) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set(HeaderErrorCode, de.Code)
	w.WriteHeader(StatusForCode(de.Code))
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, de.Code, de.Message, de.Details))
}

// handleServiceError maps err to a response. Non-domain errors and store
// failures are logged; their details never reach the client.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		logger.L(r.Context()).Error("internal error", "error", err)
		h.writeError(w, r, domain.ErrInternal)
		return
	}
	if domain.IsStoreFailure(err) {
		logger.L(r.Context()).Warn("store failure", "error", err)
		h.writeError(w, r, &domain.DomainError{Code: de.Code, Message: de.Message})
		return
	}
	if de.Code == domain.ErrInternal.Code {
		logger.L(r.Context()).Error("internal error", "error", err)
		h.writeError(w, r, domain.ErrInternal)
		return
	}
	h.writeError(w, r, de)
}

// StatusForCode maps an error code to its HTTP status.
func StatusForCode(code string) int {
	switch {
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-4010"), strings.HasSuffix(code, "-4011"):
		return http.StatusUnauthorized
	case strings.HasSuffix(code, "-4030"), strings.HasSuffix(code, "-4031"), strings.HasSuffix(code, "-4032"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-4040"), strings.HasSuffix(code, "-4041"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4090"):
		return http.StatusConflict
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	case strings.HasSuffix(code, "-5040"):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON body, or a form body when the content type says
// so. Unknown JSON fields are ignored.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, form func(v func(string) string)) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if form != nil && (mt == "application/x-www-form-urlencoded" || mt == "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			return domain.ErrBadRequest.WithDetails("invalid form body")
		}
		form(r.PostForm.Get)
		return nil
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrBadRequest.WithDetails("request body is required")
		}
		return domain.ErrBadRequest.WithDetails("invalid JSON body")
	}
	return nil
}
