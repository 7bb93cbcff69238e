package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fabfab/psy-assistant/embeddings"
	"github.com/fabfab/psy-assistant/llm"
)

const defaultTopK = 5

// Service answers patient questions from the indexed documents.
type Service struct {
	vectors  VectorStore
	embedder embeddings.Embedder
	llm      llm.Client
	history  History
	logger   *slog.Logger
	topK     int
}

func NewService(vectors VectorStore, embedder embeddings.Embedder, llmClient llm.Client, history History, logger *slog.Logger, topK int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if history == nil {
		history = NewMemoryHistory(0)
	}
	if topK <= 0 {
		topK = defaultTopK
	}

	return &Service{
		vectors:  vectors,
		embedder: embedder,
		llm:      llmClient,
		history:  history,
		logger:   logger,
		topK:     topK,
	}
}

// Ask retrieves the nearest passages, asks the model for the four-section
// answer and records the exchange in the shared conversation history.
// Sources mirror the retrieved passages in rank order and may repeat.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question cannot be empty")
	}
	if s.embedder == nil {
		return Answer{}, fmt.Errorf("embedder is not configured")
	}
	if s.vectors == nil {
		return Answer{}, fmt.Errorf("vector store is not configured")
	}
	if s.llm == nil {
		return Answer{}, fmt.Errorf("llm client is not configured")
	}

	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 {
		return Answer{}, fmt.Errorf("embedder returned no vectors")
	}

	chunks, err := s.vectors.SimilarChunks(ctx, vectors[0], s.topK)
	if err != nil {
		return Answer{}, fmt.Errorf("vector search: %w", err)
	}
	if len(chunks) == 0 {
		s.logger.Warn("no context retrieved, answering without documents")
	}

	past, err := s.history.Messages(ctx)
	if err != nil {
		return Answer{}, fmt.Errorf("load history: %w", err)
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: formatUserPrompt(question, chunks, past)},
	}

	generated, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return Answer{}, fmt.Errorf("llm generate: %w", err)
	}
	answer := strings.TrimSpace(generated)

	if err := s.history.Append(ctx,
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: answer},
	); err != nil {
		s.logger.Warn("append history failed", "error", err)
	}

	sources := make([]Source, 0, len(chunks))
	for _, chunk := range chunks {
		sources = append(sources, chunk.Source())
	}
	s.logger.Debug("answered question", "chunks", len(chunks), "history", len(past))

	return Answer{Response: answer, Sources: sources}, nil
}
