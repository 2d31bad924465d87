package storage

import (
	"encoding/binary"
	"strings"
)

// BadgerConfig contains Badger tuning parameters.
type BadgerConfig struct {
	// Dir is the storage directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in RAM (tests).
	InMemory bool

	// GCInterval is the interval between value log GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5 (rewrite a value log file when half of it is stale)
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// SyncWrites fsyncs after each write.
	// Default: true. Sessions and grants must survive a crash.
	SyncWrites bool
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		GCInterval:       "10m",
		GCThreshold:      0.5,
		CacheSize:        64 << 20, // 64MB
		ValueLogFileSize: 256 << 20,
		SyncWrites:       true,
	}
}

// Key layout. Every record lives under a one or two letter prefix; index
// entries carry no value.
//
//	u/{id}                  user JSON
//	ue/{email}              user id
//	l/{id}                  location JSON
//	lp/{path}               location id
//	p/{location}/{user}     permission
//	pu/{user}/{location}    permission, reverse
//	s/{token hash}          session JSON
//	su/{user}/{token hash}  user -> session
//	meta/location_seq       last assigned location Seq (uint64 BE)
const (
	prefixUser          = "u/"
	prefixUserEmail     = "ue/"
	prefixLocation      = "l/"
	prefixLocationPath  = "lp/"
	prefixPermission    = "p/"
	prefixPermissionRev = "pu/"
	prefixSession       = "s/"
	prefixUserSession   = "su/"
	keyLocationSeq      = "meta/location_seq"
)

func key(parts ...string) []byte {
	return []byte(strings.Join(parts, ""))
}

func userKey(id string) []byte         { return key(prefixUser, id) }
func userEmailKey(email string) []byte { return key(prefixUserEmail, email) }
func locationKey(id string) []byte     { return key(prefixLocation, id) }
func locationPathKey(p string) []byte  { return key(prefixLocationPath, p) }
func sessionKey(hash string) []byte    { return key(prefixSession, hash) }

func permissionPrefix(loc string) []byte       { return key(prefixPermission, loc, "/") }
func permissionKey(loc, user string) []byte    { return key(prefixPermission, loc, "/", user) }
func permissionRevPrefix(user string) []byte   { return key(prefixPermissionRev, user, "/") }
func permissionRevKey(user, loc string) []byte { return key(prefixPermissionRev, user, "/", loc) }
func userSessionPrefix(user string) []byte     { return key(prefixUserSession, user, "/") }
func userSessionKey(user, hash string) []byte  { return key(prefixUserSession, user, "/", hash) }

// lastSegment returns the part of k after the final '/'.
func lastSegment(k []byte) string {
	s := string(k)
	return s[strings.LastIndexByte(s, '/')+1:]
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(b []byte) uint64 {
	if len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}
