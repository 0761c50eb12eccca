// Package middleware provides the HTTP middleware shared by every route.
//
//   - CORS: gin-contrib/cors with any-origin defaults for the player page
//   - RateLimit: per-IP token buckets (golang.org/x/time/rate) with idle
//     client eviction
package middleware
