// Package http provides the gin handlers of the public API.
//
// Routes:
//   - GET /api/detect: run one detection and return the ranked candidates
//   - GET /api/proxy, GET /proxy: relay a stream resource with CORS headers
//   - GET /api/health: engine availability, session usage, uptime
//   - GET /api/metrics: JSON totals and upstream breaker states
//   - GET /, GET /index.html: the bundled player page
//
// Error mapping for /api/detect:
//   - missing or invalid url: 400 invalid_request
//   - no browser engine: 503 engine_unavailable
//   - all session slots busy: 503 busy
//   - browser launch failure: 500 session_failed
package http
