// Package command defines the wwwhisper-admin commands.
//
// Every command runs against a Backend. With --server the backend is the
// admin HTTP API of a running server; with --config it is the store
// named in the server config file, opened directly. Offline mode is how
// the first admin account is created, and the only way to change a
// password. The badger backend holds an exclusive lock, so offline mode
// against badger needs the server stopped.
package command
