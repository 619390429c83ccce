package cache

import (
	"testing"
	"time"
)

func frozen(c *Cache) *time.Time {
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return &now
}

func TestGetExpiry(t *testing.T) {
	c := New(5 * time.Minute)
	now := frozen(c)

	c.Put("qr-1", "outlet-1")

	if value, ok := c.Get("qr-1"); !ok || value != "outlet-1" {
		t.Fatalf("Get = %q, %v", value, ok)
	}

	*now = now.Add(6 * time.Minute)
	if _, ok := c.Get("qr-1"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d after expired read, want 0", c.Len())
	}
}

func TestConsumeSingleUse(t *testing.T) {
	c := New(5 * time.Minute)
	frozen(c)

	c.Put("qr-1", "outlet-1")

	if value, ok := c.Consume("qr-1"); !ok || value != "outlet-1" {
		t.Fatalf("Consume = %q, %v", value, ok)
	}
	if _, ok := c.Consume("qr-1"); ok {
		t.Fatal("second consume should fail")
	}
	if _, ok := c.Get("qr-1"); ok {
		t.Fatal("consumed entry should be gone")
	}
}

func TestConsumeExpired(t *testing.T) {
	c := New(5 * time.Minute)
	now := frozen(c)

	c.Put("qr-1", "outlet-1")
	*now = now.Add(10 * time.Minute)

	if _, ok := c.Consume("qr-1"); ok {
		t.Fatal("expired credential must not authorize")
	}
}

func TestSweep(t *testing.T) {
	c := New(5 * time.Minute)
	now := frozen(c)

	c.Put("qr-old", "outlet-1")
	*now = now.Add(6 * time.Minute)
	c.Put("qr-new", "outlet-1")

	if removed := c.Sweep(); removed != 1 {
		t.Fatalf("Sweep removed %d, want 1", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	if _, ok := c.Get("qr-new"); !ok {
		t.Fatal("fresh entry should survive the sweep")
	}
}

func TestDefaultTTL(t *testing.T) {
	c := New(0)
	if c.ttl != 5*time.Minute {
		t.Fatalf("ttl = %v, want 5m default", c.ttl)
	}
}
