// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strings"

	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// MinSecretKeyLength is the minimum length of security.secret_key.
const MinSecretKeyLength = 32

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifySite(&cfg.Site); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifySession(&cfg.Session); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Address); err != nil {
		return fmt.Errorf("server.http.address: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http: %w", err)
		}
	}
	for _, entry := range cfg.AdminAllowlist {
		if !validAllowlistEntry(entry) {
			return fmt.Errorf("server.admin_allowlist: invalid entry %q", entry)
		}
	}
	for _, entry := range cfg.TrustedProxies {
		if !validAllowlistEntry(entry) {
			return fmt.Errorf("server.trusted_proxies: invalid entry %q", entry)
		}
	}
	return nil
}

func validAllowlistEntry(entry string) bool {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

func verifySite(cfg *SiteSection) error {
	if cfg.URL == "" {
		return errors.New("site.url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("site.url must be an absolute http(s) URL, got %q", cfg.URL)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("site.url must not carry a path, got %q", cfg.URL)
	}
	for _, admin := range cfg.Admins {
		if !strings.Contains(admin, "@") {
			return fmt.Errorf("site.admins: invalid email %q", admin)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case "memory":
	case "badger", "sqlite":
		if cfg.DataDir == "" && !(cfg.Backend == "sqlite" && cfg.DSN != "") {
			return errors.New("storage.data_dir is required")
		}
		if cfg.DataDir != "" {
			if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
				return errors.New("cannot create data directory: " + err.Error())
			}
		}
	case "postgres":
		if cfg.DSN == "" {
			return errors.New("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("storage.backend must be memory, badger, sqlite or postgres, got %q", cfg.Backend)
	}
	if cfg.Timeout <= 0 {
		return errors.New("storage.timeout must be positive")
	}
	return nil
}

func verifySession(cfg *SessionSection) error {
	if cfg.IdleTimeout <= 0 {
		return errors.New("session.idle_timeout must be positive")
	}
	if cfg.MaxLifetime < 0 {
		return errors.New("session.max_lifetime must not be negative")
	}
	if cfg.GCInterval <= 0 {
		return errors.New("session.gc_interval must be positive")
	}
	if cfg.CookieName == "" || strings.ContainsAny(cfg.CookieName, " \t;,=") {
		return fmt.Errorf("session.cookie_name is invalid: %q", cfg.CookieName)
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if len(cfg.SecretKey) < MinSecretKeyLength {
		return fmt.Errorf("security.secret_key must be at least %d bytes", MinSecretKeyLength)
	}
	if cfg.CSRFTTL <= 0 {
		return errors.New("security.csrf_ttl must be positive")
	}
	if cfg.MinPasswordLength < 1 {
		return errors.New("security.min_password_length must be at least 1")
	}
	if cfg.LoginRate < 0 {
		return errors.New("security.login_rate must not be negative")
	}
	if cfg.LoginRate > 0 && cfg.LoginBurst < 1 {
		return errors.New("security.login_burst must be at least 1 when login_rate is set")
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if !logger.ValidLevel(cfg.Level) {
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Level)
	}
	if cfg.Format != "json" && cfg.Format != "text" {
		return fmt.Errorf("log.format must be json or text, got %q", cfg.Format)
	}
	return nil
}
