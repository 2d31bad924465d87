// Package handler implements the wwwhisper HTTP endpoints.
//
// The auth API (/auth/api/) is what the reverse proxy and the login page
// talk to. The admin API (/admin/api/) manages locations, users and grants
// for admins. Health endpoints report liveness and store readiness.
//
// Successful responses carry the resource JSON directly, which is what the
// wwwhisper admin and login clients expect. Failures use the error
// envelope (ErrorResponse) and set X-Error-Code.
package handler
