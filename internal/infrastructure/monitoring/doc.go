// Package monitoring provides Prometheus metrics for the detection service.
//
// Metrics live on a private registry so several collectors can coexist in
// one process (tests create many) and are exposed through Handler.
//
// Collected Metrics:
//   - HTTP: request counts, durations and response sizes per route
//   - Detection: runs by outcome, run duration, candidates per run,
//     open browser sessions, trigger clicks, navigation failures
//   - Relay: relayed responses by upstream status, relayed bytes
//   - Process: Go runtime, process stats and uptime
//
// Example Usage:
//
//	metrics := monitoring.NewMetrics()
//	router.Use(monitoring.Middleware(metrics))
//	router.GET("/metrics", gin.WrapH(metrics.Handler()))
package monitoring
