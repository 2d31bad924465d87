// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr     = "127.0.0.1:8080"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultIdleTimeout  = 60 * time.Second

	DefaultBackend        = "badger"
	DefaultDataDir        = "/var/lib/wwwhisper/data"
	DefaultStorageTimeout = 2 * time.Second

	DefaultIdleSessionTimeout = 14 * 24 * time.Hour
	DefaultSessionGCInterval  = 10 * time.Minute
	DefaultCookieName         = "wwwhisper-sessionid"

	DefaultCSRFTTL           = time.Hour
	DefaultMinPasswordLength = 8
	DefaultLoginRate         = 0.2 // one attempt every 5s sustained
	DefaultLoginBurst        = 10

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Address:      DefaultHTTPAddr,
				ReadTimeout:  DefaultReadTimeout,
				WriteTimeout: DefaultWriteTimeout,
				IdleTimeout:  DefaultIdleTimeout,
			},
		},
		Storage: StorageSection{
			Backend: DefaultBackend,
			DataDir: DefaultDataDir,
			Timeout: DefaultStorageTimeout,
		},
		Session: SessionSection{
			IdleTimeout:  DefaultIdleSessionTimeout,
			GCInterval:   DefaultSessionGCInterval,
			CookieName:   DefaultCookieName,
			CookieSecure: true,
		},
		Security: SecuritySection{
			CSRFTTL:           DefaultCSRFTTL,
			MinPasswordLength: DefaultMinPasswordLength,
			LoginRate:         DefaultLoginRate,
			LoginBurst:        DefaultLoginBurst,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
