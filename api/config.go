// Package api provides the HTTP API server for driving the canvas:
// node and edge mutation, completion streaming, document upload, and
// session management.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string
}
