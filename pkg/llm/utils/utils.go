// Package llmutils is the llm provider utility package
package llmutils

import (
	"fmt"

	"github.com/papercomputeco/weave/pkg/llm"
	"github.com/papercomputeco/weave/pkg/llm/ollama"
	"github.com/papercomputeco/weave/pkg/llm/openai"
)

type NewProviderOpts struct {
	ProviderType string
	TargetURL    string
	APIKey       string
}

func NewProvider(o *NewProviderOpts) (llm.Provider, error) {
	switch o.ProviderType {
	case "ollama":
		return ollama.New(ollama.Config{BaseURL: o.TargetURL}), nil
	case "openai":
		return openai.New(openai.Config{BaseURL: o.TargetURL, APIKey: o.APIKey}), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", o.ProviderType)
	}
}
