// Package session holds active games in a bounded, concurrency-safe LRU cache.
package session

import (
	"container/list"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	constants "github.com/CodeAndHammer/wordguess/internal/constants"
	models "github.com/CodeAndHammer/wordguess/internal/models"
)

var ErrCacheClosed = errors.New("session cache is closed")

// Entry is the cache's authoritative copy of one active session. Session is
// guarded by the entry lock; callers hold it for a whole read-modify-write.
type Entry struct {
	mu      sync.Mutex
	token   string
	Session models.Session
}

func (e *Entry) Lock()   { e.mu.Lock() }
func (e *Entry) Unlock() { e.mu.Unlock() }

func (e *Entry) Token() string { return e.token }

// Snapshot returns a deep copy of the session taken under the entry lock.
func (e *Entry) Snapshot() models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Session.Clone()
}

// EvictFunc is called, outside the cache lock, with each session dropped to
// make room for a newer one.
type EvictFunc func(s models.Session)

// Cache is an LRU keyed by token. Get and Put both count as a use; the front
// of the list is the most recently used entry.
type Cache struct {
	mu       sync.Mutex
	capacity int
	index    map[string]*list.Element
	order    *list.List
	closed   bool
	onEvict  EvictFunc
}

type Option func(*Cache)

func WithEvictFunc(fn EvictFunc) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// NewCache builds a cache holding at most capacity sessions. A non-positive
// capacity falls back to the default of 50.
func NewCache(capacity int, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = constants.DefaultCacheCapacity
	}
	c := &Cache{
		capacity: capacity,
		index:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) Get(token string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[token]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*Entry), true
}

// Put inserts s or overwrites the session stored under its token. An overwrite
// installs a fresh entry; holders of the previous entry keep their copy.
func (c *Cache) Put(s models.Session) error {
	if s.Token == "" {
		return errors.New("session token is required")
	}

	var evicted *Entry
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrCacheClosed
	}
	entry := &Entry{token: s.Token, Session: s}
	if elem, ok := c.index[s.Token]; ok {
		elem.Value = entry
		c.order.MoveToFront(elem)
		c.mu.Unlock()
		return nil
	}
	if c.order.Len() >= c.capacity {
		evicted = c.evictLocked()
	}
	c.index[s.Token] = c.order.PushFront(entry)
	onEvict := c.onEvict
	c.mu.Unlock()

	if evicted != nil && onEvict != nil {
		onEvict(evicted.Snapshot())
	}
	return nil
}

func (c *Cache) evictLocked() *Entry {
	elem := c.order.Back()
	if elem == nil {
		return nil
	}
	c.order.Remove(elem)
	entry := elem.Value.(*Entry)
	delete(c.index, entry.token)
	return entry
}

// Remove deletes token. Removing a missing token is a no-op.
func (c *Cache) Remove(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[token]; ok {
		c.order.Remove(elem)
		delete(c.index, token)
	}
}

// RemoveEntry deletes the token only while it still maps to e.
func (c *Cache) RemoveEntry(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[e.token]; ok && elem.Value.(*Entry) == e {
		c.order.Remove(elem)
		delete(c.index, e.token)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) Capacity() int {
	return c.capacity
}

// Keys lists tokens from most to least recently used.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*Entry).token)
	}
	return keys
}

// Close drops every entry and makes later Puts fail with ErrCacheClosed.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.index = make(map[string]*list.Element)
	c.order.Init()
}

func (c *Cache) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// NewToken returns 128 random bits, hex encoded.
func NewToken() (string, error) {
	b := make([]byte, constants.TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidToken reports whether token has the shape NewToken produces.
func ValidToken(token string) bool {
	if len(token) != constants.TokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
