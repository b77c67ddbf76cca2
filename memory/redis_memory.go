package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// DefaultRedisKeyPrefix namespaces conversation keys.
const DefaultRedisKeyPrefix = "decisionkit:memory"

// RedisMemory stores conversations in Redis.
//
// Redis data structure:
//   - Key: "<prefix>:<conversation_id>:messages"
//   - Type: Sorted Set (ZSET), score = Unix timestamp
//   - Value: JSON(id, role, content, metadata, timestamp)
//
// Each write refreshes the key TTL and trims the set to maxSize entries.
type RedisMemory struct {
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	maxSize   int
}

var _ Memory = (*RedisMemory)(nil)

// RedisConfig configures a RedisMemory.
type RedisConfig struct {
	URL       string
	KeyPrefix string
	// TTL of a conversation since its last message (0 = no expiry).
	TTL time.Duration
	// MaxSize bounds each conversation (default DefaultMaxMessages).
	MaxSize int
}

// NewRedisMemory connects to cfg.URL.
func NewRedisMemory(cfg RedisConfig) (*RedisMemory, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}
	return NewRedisMemoryFromClient(redis.NewClient(opts), cfg), nil
}

// NewRedisMemoryFromClient wraps an existing client; cfg.URL is ignored.
func NewRedisMemoryFromClient(client *redis.Client, cfg RedisConfig) *RedisMemory {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxMessages
	}
	return &RedisMemory{
		client:    client,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		maxSize:   cfg.MaxSize,
	}
}

func (r *RedisMemory) conversationKey(conversationID string) string {
	return fmt.Sprintf("%s:%s:messages", r.keyPrefix, conversationID)
}

// storedMessage is the JSON member format. ID keeps identical messages
// from collapsing into one set member.
type storedMessage struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Store implements Memory.
func (r *RedisMemory) Store(ctx context.Context, conversationID string, message *decisionkit.Message) error {
	ts := message.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	value, err := json.Marshal(storedMessage{
		ID:        uuid.NewString(),
		Role:      message.Role,
		Content:   message.Content,
		Metadata:  message.Metadata,
		Timestamp: ts,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize message: %w", err)
	}

	key := r.conversationKey(conversationID)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(ts.UnixNano()) / 1e9, Member: value})
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-r.maxSize-1))
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// Retrieve implements Memory. Malformed members are skipped.
func (r *RedisMemory) Retrieve(ctx context.Context, conversationID string, limit int) ([]*decisionkit.Message, error) {
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}
	values, err := r.client.ZRevRange(ctx, r.conversationKey(conversationID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve messages: %w", err)
	}

	out := make([]*decisionkit.Message, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		var sm storedMessage
		if err := json.Unmarshal([]byte(values[i]), &sm); err != nil {
			continue
		}
		msg := decisionkit.NewMessage(sm.Role, sm.Content)
		msg.Timestamp = sm.Timestamp
		for k, v := range sm.Metadata {
			msg.Metadata[k] = v
		}
		out = append(out, msg)
	}
	return out, nil
}

// Clear implements Memory.
func (r *RedisMemory) Clear(ctx context.Context, conversationID string) error {
	if err := r.client.Del(ctx, r.conversationKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisMemory) Close() error {
	return r.client.Close()
}
