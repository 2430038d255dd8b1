package store

import (
	"context"
	"slices"
	"sync"

	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
)

type inMemory struct {
	mu      sync.RWMutex
	limit   int
	storage map[string][]llms.Message
}

// NewMemoryStore returns store that keeps up to limit latest messages per chat,
// zero limit keeps all messages
func NewMemoryStore(limit int) MessageStore {
	return &inMemory{
		limit:   limit,
		storage: make(map[string][]llms.Message),
	}
}

func (m *inMemory) Messages(ctx context.Context) []llms.Message {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.storage[chatID])
}

func (m *inMemory) Add(ctx context.Context, msgs ...llms.Message) error {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return ErrInvalidChatContext
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.storage[chatID], msgs...)
	if m.limit > 0 && len(list) > m.limit {
		list = slices.Clone(list[len(list)-m.limit:])
	}
	m.storage[chatID] = list
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	chatID := chatmodel.GetChatID(ctx)
	if chatID == "" {
		return ErrInvalidChatContext
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, chatID)
	return nil
}
