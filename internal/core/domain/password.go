package domain

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// Argon2id defaults.
const (
	Argon2Memory      uint32 = 64 * 1024 // 64 MiB
	Argon2Time        uint32 = 3
	Argon2Parallelism uint8  = 2
	Argon2KeyLen      uint32 = 32
	Argon2SaltLen            = 16

	// MaxPasswordBytes bounds the KDF input.
	MaxPasswordBytes = 1024

	// DefaultMinPasswordLength is used when no policy is configured.
	DefaultMinPasswordLength = 8
)

// PasswordParams are the argon2id cost parameters used for new hashes.
// Existing hashes carry their own parameters in the PHC string.
type PasswordParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

// paramsMu guards passwordParams, paramsGen and dummyHash together, so a
// dummy hash is only ever cached for the parameters it was made with.
var (
	paramsMu       sync.RWMutex
	passwordParams = PasswordParams{Memory: Argon2Memory, Time: Argon2Time, Parallelism: Argon2Parallelism}
	paramsGen      uint64
	dummyHash      string
)

const dummyPassword = "wwwhisper-dummy-password"

// SetPasswordParams replaces the cost parameters for subsequent hashes.
// Tests use it to keep argon2 cheap.
func SetPasswordParams(p PasswordParams) {
	paramsMu.Lock()
	defer paramsMu.Unlock()

	passwordParams = p
	paramsGen++
	dummyHash = ""
}

func currentParams() PasswordParams {
	paramsMu.RLock()
	defer paramsMu.RUnlock()
	return passwordParams
}

// ValidatePassword applies the password policy.
func ValidatePassword(password string, minLength int) error {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	if len(password) > MaxPasswordBytes {
		return ErrWeakPassword.WithDetails(fmt.Sprintf("password exceeds %d bytes", MaxPasswordBytes))
	}
	if utf8.RuneCountInString(password) < minLength {
		return ErrWeakPassword.WithDetails(fmt.Sprintf("password must have at least %d characters", minLength))
	}
	if strings.TrimFunc(password, unicode.IsSpace) == "" {
		return ErrWeakPassword.WithDetails("password must not be blank")
	}
	return nil
}

// HashPassword hashes a password with argon2id and a fresh random salt.
// Format: $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func HashPassword(password string) (string, error) {
	return hashPassword(password, currentParams())
}

func hashPassword(password string, p PasswordParams) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", ErrInternal.WithCause(err)
	}

	hash := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, Argon2KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Time, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPassword checks a password against a PHC hash in constant time.
// A malformed hash never matches.
func VerifyPassword(password, encoded string) bool {
	salt, hash, p, err := decodePHC(encoded)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Parallelism, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, candidate) == 1
}

// BurnPasswordCheck runs one verification against a throwaway hash so that a
// lookup miss costs the same as a wrong password.
func BurnPasswordCheck(password string) {
	if h := dummyPasswordHash(); h != "" {
		VerifyPassword(password, h)
	}
}

// dummyPasswordHash returns the cached throwaway hash, computing it for the
// current parameters on first use. Hashing runs outside the lock.
func dummyPasswordHash() string {
	paramsMu.RLock()
	h, p, gen := dummyHash, passwordParams, paramsGen
	paramsMu.RUnlock()
	if h != "" {
		return h
	}

	h, err := hashPassword(dummyPassword, p)
	if err != nil {
		return ""
	}

	paramsMu.Lock()
	defer paramsMu.Unlock()
	if gen == paramsGen && dummyHash == "" {
		dummyHash = h
	}
	return h
}

func decodePHC(encoded string) (salt, hash []byte, p PasswordParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, p, fmt.Errorf("invalid PHC hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, p, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Parallelism); err != nil {
		return nil, nil, p, fmt.Errorf("parsing parameters: %w", err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, fmt.Errorf("decoding salt: %w", err)
	}
	if hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, p, fmt.Errorf("decoding hash: %w", err)
	}
	if len(hash) == 0 {
		return nil, nil, p, fmt.Errorf("empty hash")
	}
	return salt, hash, p, nil
}
