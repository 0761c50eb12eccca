// Package main is the entry point of the HLS stream detection server.
//
// The server drives a headless Chromium through rod to find .m3u8 URLs
// requested by third-party pages, and relays discovered streams with CORS
// headers so browser players can load them.
//
// Architecture:
//
//	Client → gin router → Detector → rod engine → Chromium (one per request)
//	                    → Relay    → upstream CDN
//
// Configuration:
//   - Environment variables (12-factor), see internal/infrastructure/config
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 3333 -max-sessions 8
//
//	# Development mode (colored logs, debug level)
//	./server -dev -browser /usr/bin/chromium
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
