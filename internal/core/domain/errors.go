// Package domain defines the core domain models for wwwhisper.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form WW-<AREA>-<HTTP status><seq>, e.g. "WW-LOC-4090".
type DomainError struct {
	Code    string // Error code (e.g., "WW-SESS-4010")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsStoreFailure reports whether err comes from the storage layer rather than
// from a business rule. Callers on the authorization path fail closed on these.
func IsStoreFailure(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrUnauthenticated indicates the request carries no usable session.
	ErrUnauthenticated = NewDomainError("WW-AUTH-4010", "authentication required")

	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = NewDomainError("WW-AUTH-4011", "invalid email or password")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = NewDomainError("WW-AUTH-4030", "permission denied")

	// ErrCSRFInvalid indicates a missing, expired or foreign CSRF token.
	ErrCSRFInvalid = NewDomainError("WW-AUTH-4031", "invalid csrf token")

	// ErrIPNotAllowed indicates the client IP is not in the admin allowlist.
	ErrIPNotAllowed = NewDomainError("WW-AUTH-4032", "ip not in allowlist")

	// ErrRateLimited indicates too many login attempts.
	ErrRateLimited = NewDomainError("WW-AUTH-4290", "too many requests")
)

// ============================================================================
// User Errors (USER)
// ============================================================================

var (
	// ErrInvalidEmail indicates the email address cannot be parsed.
	ErrInvalidEmail = NewDomainError("WW-USER-4001", "invalid email address")

	// ErrWeakPassword indicates the password does not satisfy the policy.
	ErrWeakPassword = NewDomainError("WW-USER-4002", "password too weak")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = NewDomainError("WW-USER-4040", "user not found")

	// ErrDuplicateEmail indicates a user with the email already exists.
	ErrDuplicateEmail = NewDomainError("WW-USER-4090", "email already registered")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrInvalidToken indicates the session token is malformed or unknown.
	ErrInvalidToken = NewDomainError("WW-SESS-4010", "invalid session token")

	// ErrExpiredToken indicates the session passed its idle or absolute limit.
	ErrExpiredToken = NewDomainError("WW-SESS-4011", "session expired")
)

// ============================================================================
// Location Errors (LOC)
// ============================================================================

var (
	// ErrInvalidPattern indicates a location path pattern cannot be normalized.
	ErrInvalidPattern = NewDomainError("WW-LOC-4001", "invalid location path")

	// ErrInvalidPath indicates a request path cannot be normalized.
	ErrInvalidPath = NewDomainError("WW-LOC-4002", "invalid request path")

	// ErrLocationNotFound indicates the requested location does not exist.
	ErrLocationNotFound = NewDomainError("WW-LOC-4040", "location not found")

	// ErrPermissionNotFound indicates the user holds no grant for the location.
	ErrPermissionNotFound = NewDomainError("WW-LOC-4041", "permission not found")

	// ErrDuplicateLocation indicates the normalized path is already registered.
	ErrDuplicateLocation = NewDomainError("WW-LOC-4090", "location already exists")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("WW-SYS-4000", "bad request")

	// ErrInternal indicates an internal server error.
	ErrInternal = NewDomainError("WW-SYS-5000", "internal server error")

	// ErrStoreUnavailable indicates the backing store failed.
	ErrStoreUnavailable = NewDomainError("WW-SYS-5030", "store unavailable")

	// ErrTimeout indicates a store operation exceeded its deadline.
	ErrTimeout = NewDomainError("WW-SYS-5040", "store timeout")
)

// StoreError classifies a raw storage error. Context deadline and cancellation
// become ErrTimeout, everything else ErrStoreUnavailable. Domain errors pass
// through untouched.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err, "") {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout.WithDetails(op).WithCause(err)
	}
	return ErrStoreUnavailable.WithDetails(op).WithCause(err)
}
