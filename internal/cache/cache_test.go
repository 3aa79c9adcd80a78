package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetSet(t *testing.T) {
	c := New(4, time.Minute)
	c.Set("k1", "v1")

	v, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "v1", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLazyExpiry(t *testing.T) {
	c := New(4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("k1", "v1")

	now = now.Add(2 * time.Minute)
	_, ok := c.Get("k1")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestEvictsOldestAtCapacity(t *testing.T) {
	c := New(2, time.Minute)
	c.Set("k1", 1)
	c.Set("k2", 2)
	c.Set("k3", 3)

	_, ok := c.Get("k1")
	assert.False(t, ok, "oldest inserted entry should be evicted")
	_, ok = c.Get("k2")
	assert.True(t, ok)
	_, ok = c.Get("k3")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestSetExistingKeyRefreshes(t *testing.T) {
	c := New(2, time.Minute)
	c.Set("k1", 1)
	c.Set("k2", 2)
	c.Set("k1", 10) // refresh, not a new insertion

	v, ok := c.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
	_, ok = c.Get("k2")
	assert.True(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "t1|hello|10", Key("t1", "hello", 10))
	assert.NotEqual(t, Key("t1", "q", 5), Key("t2", "q", 5))
}
