package memindex

import "errors"

var (
	// ErrDimensionMismatch is returned when a query vector's length differs
	// from a stored embedding's. This signals that query and index live in
	// different vector spaces and must never be silently coerced.
	ErrDimensionMismatch = errors.New("memindex: embedding dimension mismatch")

	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("memindex: index closed")
)
