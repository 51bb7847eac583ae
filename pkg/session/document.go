package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/papercomputeco/weave/pkg/graph"
)

// Document is the serialized form of one session: identity metadata plus
// the full canvas snapshot. It is what gets persisted, exported, and
// imported.
type Document struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Canvas    graph.Snapshot `json:"canvas"`
}

// Encode serializes the document for storage or export.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encoding session document: %w", err)
	}
	return data, nil
}

// DecodeDocument parses a stored or imported session document.
func DecodeDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding session document: %w", err)
	}
	return &doc, nil
}
