package handler

import (
	"time"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// NewErrorResponse creates an error body.
func NewErrorResponse(requestID, code, message, details string) *ErrorResponse {
	return &ErrorResponse{
		Code:      code,
		Message:   message,
		Details:   details,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// LoginRequest is the body of POST /auth/api/login/, as JSON or form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CSRFTokenResponse is returned by /auth/api/csrftoken/.
type CSRFTokenResponse struct {
	CSRFToken string `json:"csrfToken"`
}

// IsAuthorizedResponse is returned by an allowed is-authorized check.
type IsAuthorizedResponse struct {
	Email string `json:"email"`
}

// WhoAmIResponse describes the logged-in user.
type WhoAmIResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

// UserResponse is the admin API user resource.
type UserResponse struct {
	ID      string `json:"id"`
	Self    string `json:"self"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
}

// LocationResponse is the admin API location resource.
type LocationResponse struct {
	ID           string          `json:"id"`
	Self         string          `json:"self"`
	Path         string          `json:"path"`
	OpenAccess   bool            `json:"openAccess"`
	AllowedUsers []*UserResponse `json:"allowedUsers"`
}

// ListLocationsResponse is returned by GET /admin/api/locations/.
type ListLocationsResponse struct {
	Locations []*LocationResponse `json:"locations"`
}

// ListUsersResponse is returned by GET /admin/api/users/.
type ListUsersResponse struct {
	Users []*UserResponse `json:"users"`
}

// CreateLocationRequest is the body of POST /admin/api/locations/.
type CreateLocationRequest struct {
	Path       string `json:"path"`
	OpenAccess bool   `json:"openAccess,omitempty"`
}

// CreateUserRequest is the body of POST /admin/api/users/.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
}

// HealthResponse is returned by /health and /ready.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
	Error   string `json:"error,omitempty"`
}
