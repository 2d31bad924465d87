// Package config loads the wwwhisper-admin profile file.
//
// The profile supplies defaults for the global flags so they need not be
// repeated on every call. Flags and WWWHISPER_ADMIN_* variables override
// it.
package config
