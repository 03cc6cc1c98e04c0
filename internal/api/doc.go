// Package api implements the local HTTP REST API and WebSocket server that
// a user interface drives the telescope client through.
//
// This package provides:
//   - REST endpoints for device selection, commands, sessions, and observations
//   - WebSocket hub relaying core state changes as "state.changed" events
//   - Optional JWT bearer authentication
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Every handler is a thin adapter over core.Manager. The server keeps no
// state of its own beyond WebSocket subscriptions; clients rebuild their
// view from GET endpoints and then follow WebSocket events.
//
// # Security
//
// When security.jwt.secret is set, every route except /health requires an
// HS256 bearer token signed with it. Browsers cannot set headers on a
// WebSocket upgrade, so /ws also accepts the token as a query parameter.
// Tokens are minted elsewhere; this server only verifies them.
package api
