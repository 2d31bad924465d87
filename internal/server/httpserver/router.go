package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/server/httpserver/handler"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
	"github.com/nguyendn/wwwhisper/internal/telemetry/metric"
)

const (
	authAPIPrefix  = "/auth/api/"
	adminAPIPrefix = "/admin/api/"

	isAuthorizedPath = authAPIPrefix + "is-authorized/"
)

// Route is one entry of the route table.
type Route struct {
	Method  string
	Pattern string
	Handler http.Handler
}

// String returns the ServeMux pattern, e.g. "GET /auth/api/whoami/".
func (r Route) String() string {
	return r.Method + " " + r.Pattern
}

// RouterConfig holds what the router needs besides the handlers.
type RouterConfig struct {
	Handler *handler.Handler

	// AdminAllowlist restricts /admin/api/ and /metrics. Nil admits all.
	AdminAllowlist *service.IPAllowlist

	// TrustedProxies are the peers whose X-Forwarded-For is honored. Nil
	// trusts none.
	TrustedProxies *service.IPAllowlist

	// Metrics enables /metrics and request instrumentation when non-nil.
	Metrics *metric.Metrics

	Logger logger.Logger
}

// Routes returns the route table.
func Routes(cfg *RouterConfig) []Route {
	h := cfg.Handler
	admin := func(fn http.HandlerFunc) http.Handler {
		return Chain(fn, NetworkACL(cfg.AdminAllowlist), h.RequireAdmin, h.RequireCSRF)
	}

	routes := []Route{
		{http.MethodGet, "/health", http.HandlerFunc(h.Health)},
		{http.MethodGet, "/ready", http.HandlerFunc(h.Ready)},

		{http.MethodGet, isAuthorizedPath, http.HandlerFunc(h.IsAuthorized)},
		{http.MethodPost, authAPIPrefix + "login/", http.HandlerFunc(h.Login)},
		{http.MethodPost, authAPIPrefix + "logout/", http.HandlerFunc(h.Logout)},
		{http.MethodGet, authAPIPrefix + "csrftoken/", http.HandlerFunc(h.CSRFToken)},
		{http.MethodPost, authAPIPrefix + "csrftoken/", http.HandlerFunc(h.CSRFToken)},
		{http.MethodGet, authAPIPrefix + "whoami/", http.HandlerFunc(h.WhoAmI)},

		{http.MethodGet, adminAPIPrefix + "locations/", admin(h.ListLocations)},
		{http.MethodPost, adminAPIPrefix + "locations/", admin(h.CreateLocation)},
		{http.MethodGet, adminAPIPrefix + "locations/{id}/", admin(h.GetLocation)},
		{http.MethodDelete, adminAPIPrefix + "locations/{id}/", admin(h.DeleteLocation)},
		{http.MethodPut, adminAPIPrefix + "locations/{id}/open-access/", admin(h.OpenLocation)},
		{http.MethodDelete, adminAPIPrefix + "locations/{id}/open-access/", admin(h.CloseLocation)},
		{http.MethodPut, adminAPIPrefix + "locations/{id}/allowed-users/{uid}/", admin(h.GrantAccess)},
		{http.MethodDelete, adminAPIPrefix + "locations/{id}/allowed-users/{uid}/", admin(h.RevokeAccess)},
		{http.MethodGet, adminAPIPrefix + "users/", admin(h.ListUsers)},
		{http.MethodPost, adminAPIPrefix + "users/", admin(h.CreateUser)},
		{http.MethodGet, adminAPIPrefix + "users/{id}/", admin(h.GetUser)},
		{http.MethodDelete, adminAPIPrefix + "users/{id}/", admin(h.DeleteUser)},
	}

	if cfg.Metrics != nil {
		routes = append(routes, Route{
			http.MethodGet, "/metrics",
			Chain(cfg.Metrics.Handler(), NetworkACL(cfg.AdminAllowlist)),
		})
	}
	return routes
}

// ValidateRoutes rejects duplicate routes, patterns not rooted at "/",
// API patterns without a trailing slash and nil handlers.
func ValidateRoutes(routes []Route) error {
	seen := make(map[string]struct{}, len(routes))
	var errs []error
	for _, rt := range routes {
		switch {
		case rt.Method == "":
			errs = append(errs, fmt.Errorf("route %q: missing method", rt.Pattern))
		case !strings.HasPrefix(rt.Pattern, "/"):
			errs = append(errs, fmt.Errorf("route %s: pattern must start with /", rt))
		case isAPIPath(rt.Pattern) && !strings.HasSuffix(rt.Pattern, "/"):
			errs = append(errs, fmt.Errorf("route %s: API pattern must end with /", rt))
		case rt.Handler == nil:
			errs = append(errs, fmt.Errorf("route %s: nil handler", rt))
		}

		key := rt.String()
		if _, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("route %s: registered twice", rt))
		}
		seen[key] = struct{}{}
	}
	return errors.Join(errs...)
}

func isAPIPath(p string) bool {
	return strings.HasPrefix(p, authAPIPrefix) || strings.HasPrefix(p, adminAPIPrefix)
}

// NewRouter validates the route table and returns the complete handler.
func NewRouter(cfg *RouterConfig) (http.Handler, error) {
	routes := Routes(cfg)
	if err := ValidateRoutes(routes); err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	mux := http.NewServeMux()
	for _, rt := range routes {
		pattern := rt.String()
		if strings.HasSuffix(rt.Pattern, "/") {
			// Exact match; a bare trailing slash would match the subtree.
			pattern += "{$}"
		}
		mux.Handle(pattern, Chain(rt.Handler, Instrument(cfg.Metrics, rt.String())))
	}

	return Chain(mux, ClientAddress(cfg.TrustedProxies), RequestID(), WithLogger(log), Audit(), Recover()), nil
}
