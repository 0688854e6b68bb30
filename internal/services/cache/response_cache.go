// Package cache provides a capacity-bounded, TTL-bounded memo of completion
// results so identical generation requests in rapid succession are not
// billed twice.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/finsight/reportgen/internal/interfaces"
)

const (
	// DefaultMaxSize caps the number of cached responses.
	DefaultMaxSize = 100

	// DefaultTTL is the entry lifetime.
	DefaultTTL = 30 * time.Minute

	// keyPromptPrefixLen is how much of the prompt participates in the key.
	keyPromptPrefixLen = 100
)

type entry struct {
	value     interfaces.CompletionResult
	expiresAt time.Time
}

// ResponseCache memoizes completion results keyed by prompt fingerprint.
// Eviction is insertion-order (FIFO), not LRU; expiry is lazy on read.
type ResponseCache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	entries map[string]*entry
	order   []string // insertion order, oldest first
	logger  arbor.ILogger

	now func() time.Time // overridable for tests
}

// NewResponseCache creates a cache with the given capacity and TTL.
// Non-positive values fall back to the defaults.
func NewResponseCache(maxSize int, ttl time.Duration, logger arbor.ILogger) *ResponseCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResponseCache{
		maxSize: maxSize,
		ttl:     ttl,
		entries: make(map[string]*entry),
		order:   make([]string, 0, maxSize),
		logger:  logger,
		now:     time.Now,
	}
}

// GenerateKey builds the cache key from a prompt prefix and the generation
// fingerprint. Identical (prompt, model, temperature, maxTokens) tuples
// always collide; any difference in the tuple never does.
func GenerateKey(prompt, model string, temperature float64, maxTokens int) string {
	prefix := prompt
	if len(prefix) > keyPromptPrefixLen {
		prefix = prefix[:keyPromptPrefixLen]
	}
	return fmt.Sprintf("%s|%s|%.3f|%d", prefix, model, temperature, maxTokens)
}

// Get returns the cached result, or false when the key is absent or the
// entry's TTL has elapsed. Expired entries are deleted on access.
func (c *ResponseCache) Get(key string) (*interfaces.CompletionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.deleteLocked(key)
		return nil, false
	}

	value := e.value
	return &value, true
}

// Set stores a result. When the cache is at capacity the single
// oldest-inserted entry is evicted first.
func (c *ResponseCache) Set(key string, value *interfaces.CompletionResult) {
	if value == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		// Refresh in place; insertion order is unchanged.
		e.value = *value
		e.expiresAt = c.now().Add(c.ttl)
		return
	}

	if len(c.order) >= c.maxSize {
		oldest := c.order[0]
		c.deleteLocked(oldest)
		if c.logger != nil {
			c.logger.Debug().
				Str("evicted_key", oldest).
				Int("max_size", c.maxSize).
				Msg("Response cache at capacity, evicted oldest entry")
		}
	}

	c.entries[key] = &entry{
		value:     *value,
		expiresAt: c.now().Add(c.ttl),
	}
	c.order = append(c.order, key)
}

// Len returns the current entry count, including not-yet-collected expired
// entries.
func (c *ResponseCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResponseCache) deleteLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
