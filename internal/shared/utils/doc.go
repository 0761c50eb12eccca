// Package utils holds input validation shared by the HTTP and WebSocket
// handlers and the stream relay.
package utils
