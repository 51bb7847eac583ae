package parser

import "errors"

// ErrUnsupportedFormat is returned when no parser is registered for a
// file's extension.
var ErrUnsupportedFormat = errors.New("parser: unsupported format")
