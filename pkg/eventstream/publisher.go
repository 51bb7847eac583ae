package eventstream

import "context"

// Publisher publishes canvas events to an event stream backend.
type Publisher interface {
	Publish(ctx context.Context, event *CanvasEvent) error
	Close() error
}
