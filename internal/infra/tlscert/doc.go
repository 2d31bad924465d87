// Package tlscert serves the HTTPS listener's certificate and reloads it
// when the key pair changes on disk, so renewed certificates take effect
// without a restart.
package tlscert
