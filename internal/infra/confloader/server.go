package confloader

import (
	"fmt"
	"path/filepath"

	"github.com/nguyendn/wwwhisper/internal/server/config"
	"github.com/nguyendn/wwwhisper/internal/telemetry/logger"
)

// serverListKeys are the keys that accept comma separated env values.
var serverListKeys = []string{"site.admins", "server.admin_allowlist", "server.trusted_proxies"}

// LoadServerConfig loads defaults, then the file at path (optional), then
// the environment, and verifies the result.
func LoadServerConfig(path string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []Option{WithListKeys(serverListKeys...)}
	if path != "" {
		opts = append(opts, WithConfigFile(path))
	}
	if err := NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// WatchServerConfig reloads the config file at path whenever it changes
// and passes every valid result to apply. Invalid edits are logged and
// skipped, leaving the running config in place.
func WatchServerConfig(path string, log logger.Logger, apply func(*config.ServerConfig)) (*Watcher, error) {
	w, err := NewWatcher(WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	w.OnChange(func(changed string) {
		if filepath.Clean(changed) != target {
			return
		}
		cfg, err := LoadServerConfig(path)
		if err != nil {
			log.Warn("ignoring invalid configuration change", "file", path, "error", err)
			return
		}
		log.Info("configuration reloaded", "file", path)
		apply(cfg)
	})

	w.StartAsync()
	return w, nil
}
