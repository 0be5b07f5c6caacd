package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

func TestGetPut(t *testing.T) {
	c := New(time.Minute)
	doc := worklog.Empty("2026-02-10")
	doc.Meta.CommitsToday = 2

	_, ok := c.Get("2026-02-10")
	assert.False(t, ok)

	c.Put("2026-02-10", doc)
	got, ok := c.Get("2026-02-10")
	require.True(t, ok)
	assert.Equal(t, 2, got.Meta.CommitsToday)

	// Mutating either side leaves the cached copy alone.
	doc.Meta.CommitsToday = 5
	got.Meta.CommitsToday = 9
	again, ok := c.Get("2026-02-10")
	require.True(t, ok)
	assert.Equal(t, 2, again.Meta.CommitsToday)
}

func TestEntriesExpire(t *testing.T) {
	c := New(30 * time.Millisecond)
	c.Put("2026-02-10", worklog.Empty("2026-02-10"))

	_, ok := c.Get("2026-02-10")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("2026-02-10")
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c := New(0)
	c.Put("2026-02-10", worklog.Empty("2026-02-10"))
	c.Put("2026-02-11", worklog.Empty("2026-02-11"))
	assert.Equal(t, 2, c.Len())

	c.Invalidate("2026-02-10")
	_, ok := c.Get("2026-02-10")
	assert.False(t, ok)

	c.Put("2026-02-11", nil)
	_, ok = c.Get("2026-02-11")
	assert.False(t, ok)
}
