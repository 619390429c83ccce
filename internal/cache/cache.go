// Package cache provides the registration-credential cache: short-lived
// QR/OTP credentials issued by the front desk are resolved here before a
// token may be created. The cache is constructed once and injected; nothing
// reads it as ambient global state.
package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time
}

type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Put stores a credential and the value it authorizes (an outlet id here).
func (c *Cache) Put(credential, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[credential] = entry{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Get resolves a credential. Expired entries are evicted on access.
func (c *Cache) Get(credential string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.entries[credential]
	if !ok {
		return "", false
	}
	if c.now().After(item.expiresAt) {
		delete(c.entries, credential)
		return "", false
	}
	return item.value, true
}

// Consume resolves and removes a credential in one step, so a credential
// authorizes exactly one registration.
func (c *Cache) Consume(credential string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	item, ok := c.entries[credential]
	if !ok {
		return "", false
	}
	delete(c.entries, credential)
	if c.now().After(item.expiresAt) {
		return "", false
	}
	return item.value, true
}

// Sweep drops expired entries. Callers run it on a timer.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for key, item := range c.entries {
		if now.After(item.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
