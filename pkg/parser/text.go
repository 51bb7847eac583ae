package parser

import "strconv"

const (
	// DefaultChunkSize is the sliding-window width in characters.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is how many characters consecutive chunks share.
	DefaultChunkOverlap = 200
)

// TextParser chunks plain text (and markdown) with a sliding window.
// A 2400-character document with the defaults yields three chunks
// starting at characters 0, 800 and 1600.
type TextParser struct {
	size    int
	overlap int
}

// NewTextParser creates a text parser. A non-positive size selects the
// default size and overlap; an overlap outside [0, size) collapses to 0.
func NewTextParser(size, overlap int) *TextParser {
	if size <= 0 {
		size = DefaultChunkSize
		overlap = DefaultChunkOverlap
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &TextParser{size: size, overlap: overlap}
}

// Parse splits the document into overlapping windows. Offsets are in
// characters, not bytes.
func (p *TextParser) Parse(name string, data []byte) ([]Chunk, error) {
	runes := []rune(string(data))
	if len(runes) == 0 {
		return nil, nil
	}

	step := p.size - p.overlap
	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + p.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Text: string(runes[start:end]),
			Metadata: map[string]string{
				"source": name,
				"type":   "text",
				"offset": strconv.Itoa(start),
			},
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
