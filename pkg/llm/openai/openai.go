// Package openai implements pkg/llm's Provider against any
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/papercomputeco/weave/pkg/llm"
	"github.com/papercomputeco/weave/pkg/sse"
)

// DefaultBaseURL is the default API URL.
const DefaultBaseURL = "https://api.openai.com"

// Provider wraps an OpenAI-compatible /v1/chat/completions endpoint.
type Provider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Config holds configuration for the OpenAI-compatible provider.
type Config struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string
}

// New creates an OpenAI-compatible chat provider.
func New(cfg Config) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{},
	}
}

// Name returns the canonical provider name.
func (p *Provider) Name() string { return "openai" }

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

// streamChunk is one SSE data payload of the streaming response. The
// delta carries an increment; the provider accumulates into cumulative
// snapshots.
type streamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// StreamCompletion streams the chat completion, delivering cumulative
// content snapshots to fn.
func (p *Provider) StreamCompletion(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) error {
	if p.apiKey == "" && p.baseURL == DefaultBaseURL {
		return llm.ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %v", llm.ErrCompletion, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", llm.ErrCompletion, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: sending request: %v", llm.ErrCompletion, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: upstream returned status %d: %s", llm.ErrCompletion, resp.StatusCode, string(msg))
	}

	reader := sse.NewReader(resp.Body)
	var accumulated string
	for {
		ev, err := reader.Next()
		if err != nil {
			return fmt.Errorf("%w: reading stream: %v", llm.ErrCompletion, err)
		}
		if ev == nil || ev.Data == "[DONE]" {
			return fn(llm.StreamChunk{Model: req.Model, Content: accumulated, Done: true})
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			return fmt.Errorf("%w: decoding chunk: %v", llm.ErrCompletion, err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		accumulated += chunk.Choices[0].Delta.Content
		if err := fn(llm.StreamChunk{
			Model:   chunk.Model,
			Content: accumulated,
			Done:    false,
		}); err != nil {
			return err
		}
	}
}

// Close releases resources held by the provider client.
func (p *Provider) Close() error {
	return nil
}
