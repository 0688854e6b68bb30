package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/finsight/reportgen/internal/interfaces"
)

func result(content string) *interfaces.CompletionResult {
	return &interfaces.CompletionResult{Content: content, TokensUsed: 10, Model: "test-model"}
}

func TestGenerateKey_Idempotent(t *testing.T) {
	a := GenerateKey("analyze ACME Corp financials", "model-a", 0.3, 2000)
	b := GenerateKey("analyze ACME Corp financials", "model-a", 0.3, 2000)

	if a != b {
		t.Errorf("identical inputs produced different keys: %q vs %q", a, b)
	}
}

func TestGenerateKey_TemperatureChangesKey(t *testing.T) {
	a := GenerateKey("analyze ACME Corp financials", "model-a", 0.3, 2000)
	b := GenerateKey("analyze ACME Corp financials", "model-a", 0.7, 2000)

	if a == b {
		t.Error("different temperatures produced the same key")
	}
}

func TestGenerateKey_UsesPromptPrefix(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	// Same first 100 chars, different tails: keys must collide.
	a := GenerateKey(string(long)+"tail-one", "m", 0.3, 100)
	b := GenerateKey(string(long)+"tail-two", "m", 0.3, 100)

	if a != b {
		t.Error("prompts with identical prefixes should share a key")
	}
}

func TestResponseCache_GetSet(t *testing.T) {
	c := NewResponseCache(10, time.Minute, nil)

	if _, ok := c.Get("missing"); ok {
		t.Error("Get returned a value for an absent key")
	}

	c.Set("k1", result("hello"))
	got, ok := c.Get("k1")
	if !ok {
		t.Fatal("Get missed a freshly set key")
	}
	if got.Content != "hello" {
		t.Errorf("expected content 'hello', got %q", got.Content)
	}
}

func TestResponseCache_FIFOEviction(t *testing.T) {
	c := NewResponseCache(3, time.Minute, nil)

	c.Set("k1", result("one"))
	c.Set("k2", result("two"))
	c.Set("k3", result("three"))
	c.Set("k4", result("four")) // evicts k1, the oldest insert

	if _, ok := c.Get("k1"); ok {
		t.Error("oldest entry survived eviction")
	}
	for _, k := range []string{"k2", "k3", "k4"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %s missing after eviction of k1", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", c.Len())
	}
}

func TestResponseCache_EvictionIsNotLRU(t *testing.T) {
	c := NewResponseCache(2, time.Minute, nil)

	c.Set("k1", result("one"))
	c.Set("k2", result("two"))

	// Touch k1 so LRU would evict k2 instead. FIFO must still evict k1.
	if _, ok := c.Get("k1"); !ok {
		t.Fatal("k1 missing before eviction test")
	}

	c.Set("k3", result("three"))

	if _, ok := c.Get("k1"); ok {
		t.Error("k1 should be evicted first regardless of recent reads")
	}
	if _, ok := c.Get("k2"); !ok {
		t.Error("k2 should survive FIFO eviction")
	}
}

func TestResponseCache_NeverExceedsMaxSize(t *testing.T) {
	c := NewResponseCache(5, time.Minute, nil)

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("key-%d", i), result("v"))
		if c.Len() > 5 {
			t.Fatalf("cache exceeded max size: %d entries after insert %d", c.Len(), i)
		}
	}
}

func TestResponseCache_LazyExpiry(t *testing.T) {
	c := NewResponseCache(10, time.Minute, nil)

	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("k1", result("one"))

	// Just before expiry the entry is still served.
	c.now = func() time.Time { return base.Add(time.Minute - time.Second) }
	if _, ok := c.Get("k1"); !ok {
		t.Fatal("entry expired before its TTL elapsed")
	}

	// Past expiry the entry reads as absent and is deleted on access.
	c.now = func() time.Time { return base.Add(time.Minute + time.Second) }
	if _, ok := c.Get("k1"); ok {
		t.Error("Get returned an expired entry")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry not deleted on access, %d entries remain", c.Len())
	}
}

func TestResponseCache_SetRefreshesExistingKey(t *testing.T) {
	c := NewResponseCache(2, time.Minute, nil)

	c.Set("k1", result("one"))
	c.Set("k2", result("two"))
	c.Set("k1", result("updated")) // no eviction, just a value refresh

	if c.Len() != 2 {
		t.Errorf("expected 2 entries after refresh, got %d", c.Len())
	}
	got, ok := c.Get("k1")
	if !ok || got.Content != "updated" {
		t.Errorf("refreshed value not served, got %+v", got)
	}
}
