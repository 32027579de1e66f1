package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

// CacheKey identifies one derived query result.
type CacheKey struct {
	Station string
	Kind    Kind
	Params  string
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Station, k.Kind, k.Params)
}

// Cache stores encoded derived-query results with a time to live.
type Cache interface {
	Get(ctx context.Context, key CacheKey) ([]byte, error)
	Set(ctx context.Context, key CacheKey, value []byte, ttl time.Duration) error
}

// MemoryCache is a thread-safe LRU cache whose entries also expire.
type MemoryCache struct {
	maxEntries int
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	value   []byte
	expires time.Time
	prev    *entry
	next    *entry
}

// NewMemoryCache creates a cache holding at most maxEntries results.
// A nil clock uses real time.
func NewMemoryCache(maxEntries int, clock clockwork.Clock) *MemoryCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *MemoryCache) Get(_ context.Context, key CacheKey) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, e.key)
		c.remove(e)
		return nil, ErrCacheMiss
	}
	c.moveToFront(e)
	return e.value, nil
}

func (c *MemoryCache) Set(_ context.Context, key CacheKey, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key.String()
	expires := c.clock.Now().Add(ttl)
	if e, ok := c.entries[k]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return nil
	}

	e := &entry{key: k, value: value, expires: expires}
	c.entries[k] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *MemoryCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *MemoryCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *MemoryCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
