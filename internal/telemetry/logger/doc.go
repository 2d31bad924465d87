// Package logger provides structured logging for wwwhisper.
//
// It wraps log/slog:
//
//   - logger.go: handler selection (json or text) and a process-wide level
//     that the config watcher can change at runtime
//   - context.go: request and user IDs carried through context.Context
//   - redact.go: session tokens, passwords, CSRF tokens and DSNs never
//     reach the output in clear
package logger
