package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// CSVParser emits one chunk per data row, prefixing each value with its
// column header so the text stays meaningful after embedding.
type CSVParser struct{}

// NewCSVParser creates a CSV parser.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse reads the CSV and returns one chunk per row after the header.
func (p *CSVParser) Parse(name string, data []byte) ([]Chunk, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv %s: %w", name, err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	header := records[0]
	chunks := make([]Chunk, 0, len(records)-1)
	for i, row := range records[1:] {
		parts := make([]string, 0, len(row))
		for j, val := range row {
			if j < len(header) {
				parts = append(parts, header[j]+": "+val)
			} else {
				parts = append(parts, val)
			}
		}
		chunks = append(chunks, Chunk{
			Text: strings.Join(parts, "\n"),
			Metadata: map[string]string{
				"source": name,
				"type":   "csv",
				"row":    strconv.Itoa(i + 1),
			},
		})
	}
	return chunks, nil
}
