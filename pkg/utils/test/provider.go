package testutils

import (
	"context"
	"fmt"

	"github.com/papercomputeco/weave/pkg/llm"
)

// MockProvider is a test provider that streams scripted cumulative chunks.
type MockProvider struct {
	// Chunks are the cumulative content snapshots streamed for each request.
	Chunks []string

	// Err, when set, is returned instead of streaming.
	Err error

	// Block, when set, delays each chunk until released or the context is
	// canceled. Send one value per chunk to release it.
	Block chan struct{}

	// Requests records every request received, in order.
	Requests []*llm.ChatRequest
}

// NewMockProvider creates a provider streaming the given snapshots.
func NewMockProvider(chunks ...string) *MockProvider {
	return &MockProvider{Chunks: chunks}
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) StreamCompletion(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) error {
	m.Requests = append(m.Requests, req)

	if m.Err != nil {
		return m.Err
	}
	if len(m.Chunks) == 0 {
		return fmt.Errorf("mock provider has no chunks configured")
	}

	for i, content := range m.Chunks {
		if m.Block != nil {
			select {
			case <-m.Block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(llm.StreamChunk{
			Model:   req.Model,
			Content: content,
			Done:    i == len(m.Chunks)-1,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockProvider) Close() error {
	return nil
}
