package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/fabfab/psy-assistant/llm"
)

// History is the conversation buffer shared by every question, user and
// assistant turns in order.
type History interface {
	Messages(ctx context.Context) ([]llm.Message, error)
	Append(ctx context.Context, msgs ...llm.Message) error
	Clear(ctx context.Context) error
}

// MemoryHistory keeps the buffer in process. A positive limit keeps only
// the most recent messages.
type MemoryHistory struct {
	mu       sync.Mutex
	messages []llm.Message
	limit    int
}

func NewMemoryHistory(limit int) *MemoryHistory {
	return &MemoryHistory{limit: limit}
}

func (h *MemoryHistory) Messages(context.Context) ([]llm.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]llm.Message(nil), h.messages...), nil
}

func (h *MemoryHistory) Append(_ context.Context, msgs ...llm.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
	if h.limit > 0 && len(h.messages) > h.limit {
		h.messages = append([]llm.Message(nil), h.messages[len(h.messages)-h.limit:]...)
	}
	return nil
}

func (h *MemoryHistory) Clear(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
	return nil
}

// RedisHistory stores the buffer as a Redis list of JSON messages so several
// backend replicas share one conversation.
type RedisHistory struct {
	client redis.Cmdable
	key    string
	limit  int
}

func NewRedisHistory(client redis.Cmdable, key string, limit int) *RedisHistory {
	return &RedisHistory{client: client, key: key, limit: limit}
}

func (h *RedisHistory) Messages(ctx context.Context) ([]llm.Message, error) {
	raw, err := h.client.LRange(ctx, h.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read history list: %w", err)
	}

	messages := make([]llm.Message, 0, len(raw))
	for _, item := range raw {
		var msg llm.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode history entry: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (h *RedisHistory) Append(ctx context.Context, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode history entry: %w", err)
		}
		values = append(values, data)
	}

	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, h.key, values...)
		if h.limit > 0 {
			pipe.LTrim(ctx, h.key, int64(-h.limit), -1)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (h *RedisHistory) Clear(ctx context.Context) error {
	if err := h.client.Del(ctx, h.key).Err(); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

var (
	_ History = (*MemoryHistory)(nil)
	_ History = (*RedisHistory)(nil)
)
