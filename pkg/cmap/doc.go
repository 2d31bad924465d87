// Package cmap provides a concurrent-safe sharded map.
//
// Keys are spread over a power-of-two number of shards, each guarded by
// its own RWMutex, so unrelated keys do not contend.
//
// Usage:
//
//	m := cmap.New[string, *domain.Session]()
//	m.Set(hash, session)
//	s, ok := m.Get(hash)
//
// Single-key operations are atomic. Operations spanning keys (Range,
// RemoveIf) lock one shard at a time; callers that need a consistent view
// across keys must serialize writers themselves.
package cmap
