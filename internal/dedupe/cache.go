// ABOUTME: TTL- and size-bounded cache remembering the result of a submission
// ABOUTME: Lets a repeated send with the same client message ID return the first result

package dedupe

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// Cache maps submission keys to their first result for a limited time.
// A doubly-linked list keeps insertion order so eviction of the oldest
// entry is O(1).
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*list.Element // element values are *entry[V]
	order   *list.List               // oldest at front
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a Cache. Entries older than ttl are ignored and swept on
// write; once maxSize entries are held the oldest is evicted.
func New[V any](ttl time.Duration, maxSize int) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1024
	}
	return &Cache[V]{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.expired(e) {
		c.removeLocked(elem)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, replacing any previous value.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()

	if elem, exists := c.entries[key]; exists {
		c.removeLocked(elem)
	}

	if len(c.entries) >= c.maxSize {
		if front := c.order.Front(); front != nil {
			c.removeLocked(front)
		}
	}

	c.entries[key] = c.order.PushBack(&entry[V]{
		key:      key,
		value:    value,
		storedAt: c.now(),
	})
}

// ForgetPrefix drops every key starting with prefix and returns how many
// were dropped.
func (c *Cache[V]) ForgetPrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key, elem := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(elem)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored entries, expired ones included until swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return c.ttl > 0 && c.now().Sub(e.storedAt) >= c.ttl
}

// sweepLocked removes expired entries from the front. Entries are in
// insertion order, so the first live one ends the sweep.
func (c *Cache[V]) sweepLocked() {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		if !c.expired(front.Value.(*entry[V])) {
			return
		}
		c.removeLocked(front)
	}
}

// removeLocked deletes elem. Must be called with mu held.
func (c *Cache[V]) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry[V])
	c.order.Remove(elem)
	delete(c.entries, e.key)
}
