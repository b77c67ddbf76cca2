// Package memory stores conversation history keyed by conversation id.
//
// Implementations:
//   - InMemoryMemory: process-local, bounded per conversation
//   - RedisMemory: Redis sorted sets with TTL, shared between instances
package memory

import (
	"context"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// DefaultRetrieveLimit is used when Retrieve is called with limit <= 0.
const DefaultRetrieveLimit = 10

// Memory is the conversation history store.
//
// Example:
//
//	mem := NewInMemoryMemory(50)
//	err := mem.Store(ctx, "3f2a9c1e0b7d4e65", decisionkit.NewMessage("user", "How are sales?"))
//	history, err := mem.Retrieve(ctx, "3f2a9c1e0b7d4e65", 10)
type Memory interface {
	// Store appends a message to a conversation.
	Store(ctx context.Context, conversationID string, message *decisionkit.Message) error

	// Retrieve returns up to limit of the most recent messages of a
	// conversation in chronological order. Unknown conversations yield an
	// empty slice.
	Retrieve(ctx context.Context, conversationID string, limit int) ([]*decisionkit.Message, error)

	// Clear removes a conversation.
	Clear(ctx context.Context, conversationID string) error

	// Close releases backend resources.
	Close() error
}
