package postgres

import (
	"testing"
	"time"

	"branchq/queue-service/internal/queue"
)

func TestNewStoreDefaults(t *testing.T) {
	s := NewStore(nil, Options{})

	if s.window != queue.DefaultWindow() {
		t.Fatalf("window = %+v, want noon default", s.window)
	}
	if s.txTimeout != 10*time.Second {
		t.Fatalf("txTimeout = %v, want 10s", s.txTimeout)
	}
	if s.breakPolicy != queue.DefaultBreakPolicy() {
		t.Fatalf("breakPolicy = %+v, want defaults", s.breakPolicy)
	}
}

func TestNewStoreMidnightWindow(t *testing.T) {
	// An explicit midnight boundary must survive; it is not "unset".
	s := NewStore(nil, Options{Window: &queue.Window{Hour: 0, Minute: 0}})

	if s.window.Hour != 0 || s.window.Minute != 0 {
		t.Fatalf("window = %+v, want midnight", s.window)
	}

	now := time.Date(2025, 3, 10, 0, 30, 0, 0, time.UTC)
	if got := s.window.LastReset(now); !got.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("LastReset = %v, want today's midnight", got)
	}
}
