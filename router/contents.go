package router

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ContentStore holds oversized payloads behind opaque ids until they expire.
// Expired entries are swept lazily on access.
type ContentStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]contentEntry
}

type contentEntry struct {
	text    string
	expires time.Time
}

// NewContentStore creates a store whose entries live for ttl.
func NewContentStore(ttl time.Duration) *ContentStore {
	return &ContentStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]contentEntry),
	}
}

// Put stores text and returns its id.
func (c *ContentStore) Put(text string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	id := uuid.NewString()
	c.entries[id] = contentEntry{text: text, expires: c.now().Add(c.ttl)}
	return id
}

// Get returns the stored text, or false if the id is unknown or expired.
func (c *ContentStore) Get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	e, ok := c.entries[id]
	if !ok {
		return "", false
	}
	return e.text, true
}

func (c *ContentStore) sweepLocked() {
	now := c.now()
	for id, e := range c.entries {
		if now.After(e.expires) {
			delete(c.entries, id)
		}
	}
}
