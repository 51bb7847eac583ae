// Package parser turns uploaded documents into ordered text chunks with
// provenance metadata. One implementation exists per supported format; all
// satisfy the same output contract, so the ingestion pipeline never cares
// which format produced a chunk.
package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Chunk is one ordered piece of parsed text. Metadata always carries
// "source" (the originating file name) and "type"; formats add their own
// provenance keys (offset, row, ...).
type Chunk struct {
	Text     string
	Metadata map[string]string
}

// Parser converts a document's raw bytes into ordered chunks.
type Parser interface {
	// Parse returns the document's chunks in order.
	Parse(name string, data []byte) ([]Chunk, error)
}

// Registry maps file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a registry with the built-in text and CSV parsers
// registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	text := NewTextParser(0, 0)
	r.Register(".txt", text)
	r.Register(".md", text)
	r.Register(".csv", NewCSVParser())
	return r
}

// Register associates an extension (with leading dot) with a parser.
func (r *Registry) Register(ext string, p Parser) {
	r.parsers[strings.ToLower(ext)] = p
}

// For returns the parser for a file name's extension.
func (r *Registry) For(name string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(name))
	p, ok := r.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return p, nil
}
