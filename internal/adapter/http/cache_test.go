package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache_BasicGetPut(t *testing.T) {
	c := newLRUCache(3)

	c.put("a", []byte("render-a"))
	c.put("b", []byte("render-b"))

	img, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("render-a"), img)

	_, ok = c.get("missing")
	assert.False(t, ok)
}

func TestLRUCache_Eviction(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []byte("A"))
	c.put("b", []byte("B"))
	c.put("c", []byte("C")) // evicts "a"

	_, ok := c.get("a")
	assert.False(t, ok, "a should have been evicted")

	img, ok := c.get("b")
	assert.True(t, ok)
	assert.Equal(t, []byte("B"), img)

	img, ok = c.get("c")
	assert.True(t, ok)
	assert.Equal(t, []byte("C"), img)
}

func TestLRUCache_AccessPromotesEntry(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []byte("A"))
	c.put("b", []byte("B"))

	// Access "a" to promote it.
	c.get("a")

	// Inserting "c" should evict "b", not "a".
	c.put("c", []byte("C"))

	_, ok := c.get("a")
	assert.True(t, ok, "a was accessed recently, should not be evicted")

	_, ok = c.get("b")
	assert.False(t, ok, "b should have been evicted")
}

func TestLRUCache_UpdateExisting(t *testing.T) {
	c := newLRUCache(2)

	c.put("a", []byte("A1"))
	c.put("a", []byte("A2"))

	img, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, []byte("A2"), img)
}
