// Package storage selects and opens the wwwhisper store.
//
// Backends:
//
//   - memory: sharded maps behind one RWMutex (package memory). Nothing
//     survives a restart.
//   - badger: embedded Badger KV with serializable transactions. The
//     default for single-node deployments.
//   - sqlite, postgres: database/sql with goose migrations (package
//     sqlstore).
//
// Every backend passes the same conformance suite in package storetest.
package storage
