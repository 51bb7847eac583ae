package eventstream

import "errors"

// ErrNilCanvasEvent indicates a nil canvas event payload was provided to a publisher.
var ErrNilCanvasEvent = errors.New("nil canvas event")
