// Package confloader loads and watches the server configuration.
//
// Sources, lowest priority first:
//
//  1. Defaults (config.Default)
//  2. YAML file given by --config
//  3. WWWHISPER_ environment variables, with "__" between nested keys
//     (WWWHISPER_SESSION__IDLE_TIMEOUT=24h)
//
// A Watcher built on fsnotify re-runs the whole load when the file
// changes. The server applies only log.level and site.admins live.
package confloader
