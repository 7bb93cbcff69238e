// Package embeddings turns text chunks and questions into vectors for the
// pgvector store.
package embeddings

import (
	"context"
	"fmt"

	"github.com/fabfab/psy-assistant/config"
)

// batchSize bounds how many texts go into one provider call.
const batchSize = 64

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Options struct {
	Provider  string
	Model     string
	Dimension int

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewEmbedder(cfg config.Config) (Embedder, error) {
	opts := Options{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimension:     cfg.Embeddings.Dimension,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaEmbedder(opts), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai embeddings selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIEmbedder(opts), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", opts.Provider)
	}
}

// embedBatched calls fn over consecutive slices of texts and concatenates
// the results, checking count and dimension of every vector.
func embedBatched(ctx context.Context, texts []string, dimension int, fn func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := fn(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(batch), len(vectors))
		}
		for _, vec := range vectors {
			if dimension > 0 && len(vec) != dimension {
				return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", dimension, len(vec))
			}
		}
		results = append(results, vectors...)
	}
	return results, nil
}
