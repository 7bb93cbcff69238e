// Package llm talks to the chat model that writes the psychiatric answer:
// Groq or any OpenAI-compatible endpoint through go-openai, or a local
// Ollama server.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/fabfab/psy-assistant/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyCompletion is returned when the model answers with no text.
var ErrEmptyCompletion = errors.New("model returned an empty answer")

// Message is one prompt turn. It doubles as the unit stored in the
// conversation history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

type Options struct {
	Provider string
	Model    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

// NewClient picks the chat model backend. The openai provider targets
// OpenAIBaseURL, which defaults to Groq.
func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		Model:         cfg.LLM.Model,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY (or OPENAI_API_KEY) is required for model %q at %s", opts.Model, opts.OpenAIBaseURL)
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}

// validateMessages rejects prompts the providers would refuse anyway, so
// the failure names the bad turn instead of surfacing as an HTTP 400.
func validateMessages(messages []Message) error {
	if len(messages) == 0 {
		return fmt.Errorf("prompt has no messages")
	}
	for i, msg := range messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("message %d has unknown role %q", i, msg.Role)
		}
	}
	if last := messages[len(messages)-1]; last.Role != RoleUser {
		return fmt.Errorf("prompt must end with a user turn, got %q", last.Role)
	}
	return nil
}
