// Package ollama implements pkg/llm's Provider against Ollama's chat API.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/papercomputeco/weave/pkg/llm"
)

// DefaultBaseURL is the default Ollama API URL.
const DefaultBaseURL = "http://localhost:11434"

// Provider wraps Ollama's /api/chat streaming endpoint.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the Ollama provider.
type Config struct {
	// BaseURL is the Ollama API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string
}

// New creates an Ollama chat provider.
func New(cfg Config) *Provider {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Provider{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Streaming completions can run long; no overall timeout, the
			// caller's ctx bounds the request.
			Timeout: 0,
		},
	}
}

// Name returns the canonical provider name.
func (p *Provider) Name() string { return "ollama" }

// chatRequest is the request body for Ollama's chat API.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// chatChunk is one NDJSON line of Ollama's streaming response. Ollama
// sends incremental deltas; the provider accumulates them into the
// cumulative snapshots pkg/llm promises.
type chatChunk struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// StreamCompletion streams the chat completion, delivering cumulative
// content snapshots to fn.
func (p *Provider) StreamCompletion(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) error {
	body, err := json.Marshal(chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   true,
		Options:  req.Options,
	})
	if err != nil {
		return fmt.Errorf("%w: marshaling request: %v", llm.ErrCompletion, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", llm.ErrCompletion, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: sending request: %v", llm.ErrCompletion, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: ollama returned status %d: %s", llm.ErrCompletion, resp.StatusCode, string(msg))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var accumulated string
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return fmt.Errorf("%w: decoding chunk: %v", llm.ErrCompletion, err)
		}

		accumulated += chunk.Message.Content
		if err := fn(llm.StreamChunk{
			Model:   chunk.Model,
			Content: accumulated,
			Done:    chunk.Done,
		}); err != nil {
			return err
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: reading stream: %v", llm.ErrCompletion, err)
	}

	// Stream ended without a done chunk; flush what we have as final.
	return fn(llm.StreamChunk{Model: req.Model, Content: accumulated, Done: true})
}

// Close releases resources held by the provider client.
func (p *Provider) Close() error {
	return nil
}
