// Package internal contains the core implementation packages for mdserve.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules.
//
// # Package Organization
//
//   - resolver: Maps request paths to files under the served directory
//   - renderer: Markdown to sanitized HTML with tables, superscript,
//     autolinks, typographic quotes and heading ids
//   - cache: Render cache keyed by file path and modification time
//   - server: Request pipeline, static passthrough, live reload and health
//   - watcher: File system monitoring with debouncing
//   - config: Layered configuration through viper
//   - errors: Rejection kinds carried through ordinary error returns
//   - logging: Structured logging over log/slog
//   - version: Build information
//
// # Request Flow
//
//   - The server hands each GET path to the resolver
//   - Markdown targets are stat'd and looked up in the cache by path and
//     modification time
//   - A miss reads the file, validates UTF-8 and renders it while holding
//     the cache lock, so concurrent requests render a version once
//   - The body is wrapped in the head and tail fragments
//   - Anything that is not Markdown goes to the static file handler
//
// # Live Reload
//
// With live reload enabled the watcher reports debounced changes under the
// served directory. The server evicts the cached renders of changed files and
// pushes a reload message to browsers connected over WebSocket.
package internal
