package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheEntry(id string) *Entry {
	return &Entry{ID: id, Content: "fact " + id}
}

func TestLRUCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", cacheEntry("a"))
	c.put("b", cacheEntry("b"))

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.get("a")
	require.True(t, ok)

	c.put("c", cacheEntry("c"))

	_, ok = c.get("b")
	assert.False(t, ok, "least recently accessed entry should be evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.len())
}

func TestLRUCachePutCountsAsAccess(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", cacheEntry("a"))
	c.put("b", cacheEntry("b"))

	// Re-putting "a" refreshes it, so "b" is evicted next.
	c.put("a", cacheEntry("a"))
	c.put("c", cacheEntry("c"))

	_, ok := c.get("b")
	assert.False(t, ok)
	_, ok = c.get("a")
	assert.True(t, ok)
}

func TestLRUCachePutReplacesValue(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", cacheEntry("a"))
	replacement := &Entry{ID: "a", Content: "updated"}
	c.put("a", replacement)

	got, ok := c.get("a")
	require.True(t, ok)
	assert.Equal(t, "updated", got.Content)
	assert.Equal(t, 1, c.len())
}

func TestLRUCacheRemove(t *testing.T) {
	c := newLRUCache(2)
	c.put("a", cacheEntry("a"))
	c.remove("a")

	_, ok := c.get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.len())

	// Removing an absent id is a no-op.
	c.remove("missing")
}

func TestLRUCacheMinimumCapacity(t *testing.T) {
	c := newLRUCache(0)
	c.put("a", cacheEntry("a"))
	_, ok := c.get("a")
	assert.True(t, ok)

	c.put("b", cacheEntry("b"))
	_, ok = c.get("a")
	assert.False(t, ok)
}
