// Package ws streams detection runs over WebSocket.
//
// A client connects to /api/detect/stream with the same query parameters as
// /api/detect. Invalid parameters are rejected with a plain 400 before the
// upgrade. Once connected the server sends:
//   - candidate: one frame per newly discovered URL, in discovery order
//   - result: the ranked result, identical to the /api/detect body
//   - error: the run failed; code matches the /api/detect error codes
//
// The connection is closed after the result or error frame. Closing it
// early cancels the run and releases its browser session.
//
// Example Usage:
//
//	handler := ws.NewHandler(detector, cfg.Detect, logger)
//	router.GET("/api/detect/stream", handler.HandleConnection)
package ws
