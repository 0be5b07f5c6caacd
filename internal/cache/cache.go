// Package cache holds recently read daily logs in memory.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/abishchhetri-svg/Tasks/internal/worklog"
)

// DefaultTTL is how long a read document is trusted without going back to disk.
const DefaultTTL = 5 * time.Minute

// Documents caches parsed documents by date. Entries older than the TTL are
// never returned. Stored and returned documents are copies.
type Documents struct {
	items *gocache.Cache
}

func New(ttl time.Duration) *Documents {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Documents{items: gocache.New(ttl, 0)}
}

func (c *Documents) Get(date worklog.Date) (*worklog.Document, bool) {
	v, ok := c.items.Get(string(date))
	if !ok {
		return nil, false
	}
	doc, ok := v.(*worklog.Document)
	if !ok {
		return nil, false
	}
	return doc.Clone(), true
}

func (c *Documents) Put(date worklog.Date, doc *worklog.Document) {
	if doc == nil {
		c.Invalidate(date)
		return
	}
	c.items.SetDefault(string(date), doc.Clone())
}

func (c *Documents) Invalidate(date worklog.Date) {
	c.items.Delete(string(date))
}

func (c *Documents) Flush() {
	c.items.Flush()
}

func (c *Documents) Len() int {
	return c.items.ItemCount()
}
