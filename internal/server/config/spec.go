// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for wwwhisper-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Site     SiteSection     `koanf:"site"`
	Storage  StorageSection  `koanf:"storage"`
	Session  SessionSection  `koanf:"session"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// AdminAllowlist lists IPs or CIDRs that may reach /admin/api/.
	// Empty admits every client.
	AdminAllowlist []string `koanf:"admin_allowlist"`

	// TrustedProxies lists the reverse proxies whose X-Forwarded-For and
	// X-Real-IP headers name the client. Empty trusts none, and the peer
	// address is used as is.
	TrustedProxies []string `koanf:"trusted_proxies"`

	Metrics MetricsConfig `koanf:"metrics"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Address      string        `koanf:"address"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	TLSCertFile  string        `koanf:"tls_cert_file"`
	TLSKeyFile   string        `koanf:"tls_key_file"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// SiteSection describes the protected site.
type SiteSection struct {
	// URL is the external address of the site, e.g. https://example.org.
	// Admin API resources link back to it.
	URL string `koanf:"url"`

	// Admins are emails treated as administrators in addition to users
	// whose stored record carries the admin flag. Reloaded live.
	Admins []string `koanf:"admins"`
}

// StorageSection selects the store backend.
type StorageSection struct {
	// Backend is memory, badger, sqlite or postgres.
	Backend string `koanf:"backend"`
	DataDir string `koanf:"data_dir"`

	// DSN is the postgres connection string, or a sqlite path override.
	DSN string `koanf:"dsn"`

	// Timeout bounds every store call made on behalf of a request.
	Timeout time.Duration `koanf:"timeout"`
}

// SessionSection configures session lifetime and the session cookie.
type SessionSection struct {
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// MaxLifetime caps a session regardless of activity. Zero disables.
	MaxLifetime time.Duration `koanf:"max_lifetime"`

	GCInterval   time.Duration `koanf:"gc_interval"`
	CookieName   string        `koanf:"cookie_name"`
	CookieDomain string        `koanf:"cookie_domain"`
	CookieSecure bool          `koanf:"cookie_secure"`
}

// SecuritySection configures secrets and login policy.
type SecuritySection struct {
	// SecretKey keys CSRF tokens. At least 32 bytes.
	SecretKey string `koanf:"secret_key"`

	CSRFTTL           time.Duration `koanf:"csrf_ttl"`
	MinPasswordLength int           `koanf:"min_password_length"`

	// LoginRate is the sustained login attempts per second per client IP.
	// Zero disables throttling.
	LoginRate  float64 `koanf:"login_rate"`
	LoginBurst int     `koanf:"login_burst"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
