package memory

import (
	"context"
	"sync"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// DefaultMaxMessages bounds each conversation when no size is given.
const DefaultMaxMessages = 100

// InMemoryMemory keeps conversations in process memory. Each conversation
// holds at most maxSize messages; the oldest are dropped first.
type InMemoryMemory struct {
	maxSize int
	mu      sync.RWMutex
	storage map[string][]*decisionkit.Message
}

var _ Memory = (*InMemoryMemory)(nil)

// NewInMemoryMemory creates a new in-memory store.
func NewInMemoryMemory(maxSize int) *InMemoryMemory {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessages
	}
	return &InMemoryMemory{
		maxSize: maxSize,
		storage: make(map[string][]*decisionkit.Message),
	}
}

// Store implements Memory.
func (m *InMemoryMemory) Store(ctx context.Context, conversationID string, message *decisionkit.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := append(m.storage[conversationID], message)
	if over := len(msgs) - m.maxSize; over > 0 {
		msgs = append([]*decisionkit.Message(nil), msgs[over:]...)
	}
	m.storage[conversationID] = msgs
	return nil
}

// Retrieve implements Memory.
func (m *InMemoryMemory) Retrieve(ctx context.Context, conversationID string, limit int) ([]*decisionkit.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.storage[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*decisionkit.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear implements Memory.
func (m *InMemoryMemory) Clear(ctx context.Context, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, conversationID)
	return nil
}

// Close implements Memory.
func (m *InMemoryMemory) Close() error { return nil }
