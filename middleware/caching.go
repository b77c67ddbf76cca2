package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// CachingConfig configures caching behavior.
type CachingConfig struct {
	// MaxCacheSize is the maximum number of entries in the cache.
	// Default: 1000
	MaxCacheSize int

	// TTL is the time-to-live for cache entries.
	// Default: 5 minutes
	TTL time.Duration

	// KeyFunc derives the cache key. The default hashes the normalized
	// message content so the same question asked in different
	// conversations shares an entry.
	KeyFunc func(*decisionkit.Message) string
}

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

type cacheEntry struct {
	response  *decisionkit.Message
	expiresAt time.Time
}

// CachingDecorator caches successful responses in an LRU with a TTL.
//
// Example:
//
//	cached := middleware.NewCachingDecorator(triageAgent, middleware.CachingConfig{TTL: 10 * time.Minute})
type CachingDecorator struct {
	agent  decisionkit.Agent
	config CachingConfig
	now    func() time.Time

	mu    sync.Mutex
	cache *lru.Cache
	stats CacheStats
}

var _ decisionkit.Agent = (*CachingDecorator)(nil)

// NewCachingDecorator creates a new caching decorator.
func NewCachingDecorator(agent decisionkit.Agent, config CachingConfig) *CachingDecorator {
	if config.MaxCacheSize <= 0 {
		config.MaxCacheSize = 1000
	}
	if config.TTL <= 0 {
		config.TTL = 5 * time.Minute
	}
	if config.KeyFunc == nil {
		config.KeyFunc = ContentKey
	}

	c := &CachingDecorator{
		agent:  agent,
		config: config,
		now:    time.Now,
		cache:  lru.New(config.MaxCacheSize),
	}
	c.cache.OnEvicted = func(lru.Key, interface{}) { c.stats.Evictions++ }
	return c
}

// ContentKey hashes the lower-cased, whitespace-normalized content.
func ContentKey(message *decisionkit.Message) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(message.Content)), " ")
	sum := sha256.Sum256([]byte(message.Role + "\x00" + normalized))
	return hex.EncodeToString(sum[:])
}

// Name returns the name of the underlying agent.
func (c *CachingDecorator) Name() string {
	return c.agent.Name()
}

// Capabilities returns the capabilities of the underlying agent.
func (c *CachingDecorator) Capabilities() []string {
	return c.agent.Capabilities()
}

// Process returns a cached response when a live entry exists, and
// otherwise forwards the message and caches a successful response.
// Responses served from cache carry "cache_hit": true.
func (c *CachingDecorator) Process(ctx context.Context, message *decisionkit.Message) (*decisionkit.Message, error) {
	key := c.config.KeyFunc(message)

	c.mu.Lock()
	if v, ok := c.cache.Get(key); ok {
		entry := v.(*cacheEntry)
		if c.now().Before(entry.expiresAt) {
			c.stats.Hits++
			c.mu.Unlock()
			return copyWithHit(entry.response), nil
		}
		c.cache.Remove(key)
	}
	c.stats.Misses++
	c.mu.Unlock()

	response, err := c.agent.Process(ctx, message)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache.Add(key, &cacheEntry{response: response, expiresAt: c.now().Add(c.config.TTL)})
	c.mu.Unlock()
	return response, nil
}

// Invalidate drops every cached response, e.g. after a data refresh.
func (c *CachingDecorator) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Clear()
}

// Stats returns a snapshot of the cache counters.
func (c *CachingDecorator) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.cache.Len()
	return s
}

func copyWithHit(m *decisionkit.Message) *decisionkit.Message {
	out := decisionkit.NewMessage(m.Role, m.Content)
	for k, v := range m.Metadata {
		out.Metadata[k] = v
	}
	out.Metadata["cache_hit"] = true
	return out
}
