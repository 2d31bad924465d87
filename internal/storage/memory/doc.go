// Package memory provides the in-memory storage backend.
//
// Users, locations and sessions live in sharded maps with secondary
// indexes (email, path, user -> sessions, permissions both ways). A
// store-wide RWMutex serializes writers, so every mutation is atomic with
// respect to readers and session touch/delete on one token are
// linearizable.
//
// Data does not survive a restart. Use it for tests and single-process
// deployments that can afford to lose sessions.
package memory
