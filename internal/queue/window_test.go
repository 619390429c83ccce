package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLastResetBeforeBoundary(t *testing.T) {
	w := Window{Hour: 12}
	now := time.Date(2025, 3, 10, 11, 59, 0, 0, time.UTC)

	got := w.LastReset(now)

	assert.Equal(t, time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC), got)
}

func TestLastResetAfterBoundary(t *testing.T) {
	w := Window{Hour: 12}
	now := time.Date(2025, 3, 10, 12, 1, 0, 0, time.UTC)

	got := w.LastReset(now)

	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), got)
}

func TestLastResetAtBoundary(t *testing.T) {
	w := Window{Hour: 12}
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now, w.LastReset(now))
}

func TestNextReset(t *testing.T) {
	w := Window{Hour: 12}

	before := time.Date(2025, 3, 10, 11, 59, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), w.NextReset(before))

	after := time.Date(2025, 3, 10, 12, 1, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC), w.NextReset(after))
}

func TestWindowWithMinute(t *testing.T) {
	w := Window{Hour: 9, Minute: 30}
	now := time.Date(2025, 3, 10, 9, 29, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 9, 9, 30, 0, 0, time.UTC), w.LastReset(now))
}
