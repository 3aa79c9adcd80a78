package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllow_ConsumesBucket(t *testing.T) {
	l := New(3, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("tenant-a"))
	assert.True(t, l.Allow("tenant-a"))
	assert.True(t, l.Allow("tenant-a"))
	assert.False(t, l.Allow("tenant-a"))
}

func TestAllow_TenantsAreIndependent(t *testing.T) {
	l := New(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("tenant-a"))
	assert.False(t, l.Allow("tenant-a"))
	assert.True(t, l.Allow("tenant-b"))
}

func TestAllow_RefillsWithElapsedTime(t *testing.T) {
	l := New(2, 2) // 2 tokens/second
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("tenant-a"))
	assert.True(t, l.Allow("tenant-a"))
	assert.False(t, l.Allow("tenant-a"))

	// Half a second refills one token.
	now = now.Add(500 * time.Millisecond)
	assert.True(t, l.Allow("tenant-a"))
	assert.False(t, l.Allow("tenant-a"))
}

func TestAllow_RefillCapsAtCapacity(t *testing.T) {
	l := New(2, 10)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("tenant-a"))

	// A long idle period must not accumulate beyond capacity.
	now = now.Add(time.Hour)
	assert.True(t, l.Allow("tenant-a"))
	assert.True(t, l.Allow("tenant-a"))
	assert.False(t, l.Allow("tenant-a"))
}
