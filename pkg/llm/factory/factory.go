package factory

import (
	"fmt"

	"meeting-agent-be/pkg/llm"
	"meeting-agent-be/pkg/llm/anthropic"
	"meeting-agent-be/pkg/llm/ollama"
	"meeting-agent-be/pkg/llm/openai"
)

type Params struct {
	Provider string // "ollama", "anthropic" or "openai"
	Model    string
	BaseURL  string
	APIKey   string
}

func NewLLMProvider(p Params) (llm.LLMProvider, error) {
	switch p.Provider {
	case "ollama":
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewOllamaProvider(baseURL, p.Model), nil
	case "anthropic":
		if p.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider needs an API key")
		}
		return anthropic.NewProvider(p.APIKey, p.BaseURL, p.Model), nil
	case "openai":
		return openai.NewProvider(p.APIKey, p.BaseURL, p.Model), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", p.Provider)
	}
}
