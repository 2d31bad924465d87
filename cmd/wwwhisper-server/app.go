package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nguyendn/wwwhisper/internal/core/service"
	"github.com/nguyendn/wwwhisper/internal/server/config"
	"github.com/nguyendn/wwwhisper/internal/server/httpserver"
	"github.com/nguyendn/wwwhisper/internal/server/httpserver/handler"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
	"github.com/nguyendn/wwwhisper/internal/telemetry/metric"
)

// app holds the wired services of a running server.
type app struct {
	sessions *service.SessionService
	admins   *service.AdminSet
	limiter  *service.RateLimiterRegistry
	metrics  *metric.Metrics
	router   http.Handler
	log      logger.Logger
}

// newApp builds the services, handlers and router on top of store.
func newApp(cfg *config.ServerConfig, store service.Store, metrics *metric.Metrics, log logger.Logger) (*app, error) {
	sessions := service.NewSessionService(store, store, service.SessionConfig{
		IdleTimeout: cfg.Session.IdleTimeout,
		MaxLifetime: cfg.Session.MaxLifetime,
	})
	creds := service.NewCredentialService(store, sessions, service.CredentialConfig{
		MinPasswordLength: cfg.Security.MinPasswordLength,
	})
	locations := service.NewLocationService(store)
	admins := service.NewAdminSet(cfg.Site.Admins)

	authz := service.NewAuthorizer(sessions, locations, admins, service.AuthorizerConfig{
		Timeout:    cfg.Storage.Timeout,
		OnDecision: metrics.ObserveDecision,
	})

	var limiter *service.RateLimiterRegistry
	if cfg.Security.LoginRate > 0 {
		limiter = service.NewRateLimiterRegistry(cfg.Security.LoginRate, cfg.Security.LoginBurst)
	}

	allowlist, err := service.NewIPAllowlist(cfg.Server.AdminAllowlist)
	if err != nil {
		return nil, fmt.Errorf("admin allowlist: %w", err)
	}
	trusted, err := service.NewIPAllowlist(cfg.Server.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	h := handler.New(handler.Deps{
		Credentials: creds,
		Sessions:    sessions,
		Locations:   locations,
		Authorizer:  authz,
		CSRF:        service.NewCSRFService([]byte(cfg.Security.SecretKey), cfg.Security.CSRFTTL),
		LoginLimit:  limiter,
		Store:       store,
		Metrics:     metrics,
		Logger:      log,
	}, handler.Config{
		SiteURL:      cfg.Site.URL,
		CookieName:   cfg.Session.CookieName,
		CookieDomain: cfg.Session.CookieDomain,
		CookieSecure: cfg.Session.CookieSecure,
		CookieMaxAge: cookieMaxAge(cfg.Session),
		StoreTimeout: cfg.Storage.Timeout,
	})

	router, err := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:        h,
		AdminAllowlist: allowlist,
		TrustedProxies: trusted,
		Metrics:        metrics,
		Logger:         log,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	return &app{
		sessions: sessions,
		admins:   admins,
		limiter:  limiter,
		metrics:  metrics,
		router:   router,
		log:      log,
	}, nil
}

// cookieMaxAge keeps the cookie no longer than the session can live.
func cookieMaxAge(s config.SessionSection) time.Duration {
	if s.MaxLifetime > 0 && s.MaxLifetime < s.IdleTimeout {
		return s.MaxLifetime
	}
	return s.IdleTimeout
}

// runGC removes expired sessions and idle login limiters until ctx ends.
func (a *app) runGC(ctx context.Context, interval time.Duration) {
	a.sessions.RunGC(ctx, interval, func(removed int, err error) {
		if err != nil {
			a.log.Warn("session collection failed", "error", err)
			return
		}
		remaining, err := a.sessions.Count(ctx)
		if err != nil {
			remaining = -1
		}
		a.metrics.ObserveCollection(removed, remaining)
		if removed > 0 {
			a.log.Info("expired sessions removed", "removed", removed, "remaining", remaining)
		}
		if swept := a.limiter.Sweep(limiterIdle); swept > 0 {
			a.log.Debug("idle login limiters dropped", "count", swept)
		}
	})
}

// applyReload applies the settings that may change without a restart:
// the log level and the admin email list.
func (a *app) applyReload(cfg *config.ServerConfig) {
	logger.SetLevel(cfg.Log.Level)
	a.admins.Replace(cfg.Site.Admins)
	a.log.Info("live settings updated",
		"log_level", cfg.Log.Level,
		"admins", strings.Join(cfg.Site.Admins, ","))
}
