// Package server wires configuration, the browser engine, the detector and
// the stream relay into one gin router and owns the HTTP server lifecycle.
//
// Middleware order: recovery, tracing, metrics, CORS, per-IP rate limiting.
//
// Example Usage:
//
//	srv, err := server.NewServer(config.LoadOrDefault())
//	if err != nil {
//		log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Close(ctx)
package server
