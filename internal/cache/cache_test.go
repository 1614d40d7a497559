package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c, err := NewAt(t.TempDir(), time.Hour)
	require.NoError(t, err)

	_, ok := c.Get("https://example.test/kev.json")
	assert.False(t, ok)

	require.NoError(t, c.Set("https://example.test/kev.json", []byte(`{"count":1}`)))
	data, ok := c.Get("https://example.test/kev.json")
	require.True(t, ok)
	assert.Equal(t, `{"count":1}`, string(data))

	_, ok = c.Get("https://example.test/other.json")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c, err := NewAt(t.TempDir(), time.Minute)
	require.NoError(t, err)
	require.NoError(t, c.Set("key", []byte("payload")))

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestDefaultTTLAndClear(t *testing.T) {
	c, err := NewAt(t.TempDir(), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, c.TTL)

	require.NoError(t, c.Set("a", []byte("1")))
	require.NoError(t, c.Set("b", []byte("2")))
	require.NoError(t, c.Clear())

	_, ok := c.Get("a")
	assert.False(t, ok)
}
