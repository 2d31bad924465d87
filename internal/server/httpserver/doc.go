// Package httpserver wires the wwwhisper handlers into an HTTP server.
//
// Routes are declared in one table (Routes) and checked by ValidateRoutes
// before they are registered on an http.ServeMux with method patterns.
// Every request passes through Recover, RequestID and Audit. Admin routes
// add the network allowlist, the admin session check and CSRF.
package httpserver
