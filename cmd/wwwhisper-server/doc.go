// Package main provides the entry point for wwwhisper-server.
//
// wwwhisper-server answers the auth requests of a reverse proxy
// (nginx auth_request or similar) that guards a site: it decides for
// every request whether the visitor may see the path, and serves the
// login, logout and admin APIs behind it.
package main
