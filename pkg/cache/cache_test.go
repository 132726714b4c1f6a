package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetGet(t *testing.T) {
	c := New(time.Minute)
	c.Set("devices", []string{"mic-a", "mic-b"})

	got, ok := c.Get("devices")
	assert.True(t, ok)
	assert.Equal(t, []string{"mic-a", "mic-b"}, got)
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	c.SetWithTTL("devices", "stale", 10*time.Millisecond)

	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("devices")
	assert.False(t, ok)
}

func TestPrune(t *testing.T) {
	c := New(time.Minute)
	c.SetWithTTL("old", 1, 5*time.Millisecond)
	c.Set("fresh", 2)

	time.Sleep(15 * time.Millisecond)
	c.Prune()

	_, ok := c.Get("old")
	assert.False(t, ok)
	_, ok = c.Get("fresh")
	assert.True(t, ok)
}

func TestDeleteAndClear(t *testing.T) {
	c := New(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
}
