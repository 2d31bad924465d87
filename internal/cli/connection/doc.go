// Package connection talks to the admin API of a running wwwhisper server.
//
// The client logs in like a browser: it fetches a CSRF token, posts the
// admin's credentials to /auth/api/login/, keeps the session cookie in a
// cookie jar and sends a fresh session-bound CSRF token with every
// state-changing call.
package connection
