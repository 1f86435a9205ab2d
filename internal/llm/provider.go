package llm

import (
	"os"
	"strings"
)

// Provider identifies an LLM provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
)

// modelPrefixes route bare model names to a provider.
var modelPrefixes = []struct {
	prefix   string
	provider Provider
}{
	{"claude", ProviderAnthropic},
	{"gpt-", ProviderOpenAI},
	{"o1", ProviderOpenAI},
	{"o3", ProviderOpenAI},
	{"o4", ProviderOpenAI},
}

// ParseModelString splits model into provider and model name. An explicit
// "provider/" prefix wins; otherwise well-known name prefixes decide, then
// OLLAMA_HOST or OPENAI_API_KEY being set, then Anthropic.
//
//	"ollama/llama3.2"          -> (ollama, "llama3.2")
//	"gpt-4o"                   -> (openai, "gpt-4o")
//	"claude-sonnet-4-20250514" -> (anthropic, "claude-sonnet-4-20250514")
func ParseModelString(model string) (Provider, string) {
	if prefix, name, ok := strings.Cut(model, "/"); ok && prefix != "" {
		switch p := Provider(strings.ToLower(prefix)); p {
		case ProviderOllama, ProviderOpenAI, ProviderAnthropic:
			return p, name
		}
	}

	lower := strings.ToLower(model)
	for _, mp := range modelPrefixes {
		if strings.HasPrefix(lower, mp.prefix) {
			return mp.provider, model
		}
	}

	switch {
	case os.Getenv("OLLAMA_HOST") != "":
		return ProviderOllama, model
	case os.Getenv("OPENAI_API_KEY") != "":
		return ProviderOpenAI, model
	}
	return ProviderAnthropic, model
}

// NewClientForModel returns a client for model and the model name to send.
// Credentials come from ANTHROPIC_API_KEY, OPENAI_API_KEY, OPENAI_BASE_URL
// and OLLAMA_HOST.
func NewClientForModel(model string) (Client, string) {
	provider, name := ParseModelString(model)
	switch provider {
	case ProviderOllama:
		return NewOllamaClient(os.Getenv("OLLAMA_HOST")), name
	case ProviderOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
			return NewOpenAICompatibleClient(base, key), name
		}
		return NewOpenAIClient(key), name
	}
	return NewAnthropicClient(), name
}
