// Package notify drains the transactional outbox and hands events to a
// Publisher. Delivery is strictly fire-and-forget: a publish failure is
// logged and the worker moves on, so a notification problem can never undo
// or block a committed state transition.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"branchq/queue-service/internal/store"
)

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload json.RawMessage) error
}

// Store is the slice of the persistence layer the worker needs.
type Store interface {
	GetLastOffset(ctx context.Context) (time.Time, error)
	ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error)
	UpdateOffset(ctx context.Context, last time.Time) error
}

type Worker struct {
	store     Store
	publisher Publisher
	batchSize int
}

type Config struct {
	BatchSize int
}

func NewWorker(store Store, publisher Publisher, cfg Config) *Worker {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &Worker{store: store, publisher: publisher, batchSize: batch}
}

// Run drains one batch. Callers invoke it on a ticker.
func (w *Worker) Run(ctx context.Context) (int, error) {
	last, err := w.store.GetLastOffset(ctx)
	if err != nil {
		return 0, err
	}

	events, err := w.store.ListOutboxEvents(ctx, last, w.batchSize)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		if err := w.publisher.Publish(ctx, event.Type, event.Payload); err != nil {
			log.Printf("notify publish error type=%s event_id=%s: %v", event.Type, event.EventID, err)
		} else {
			published++
		}
		last = event.CreatedAt
	}

	if len(events) > 0 {
		if err := w.store.UpdateOffset(ctx, last); err != nil {
			return published, err
		}
	}
	return published, nil
}

// LogPublisher is the default sink when no push transport is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, eventType string, payload json.RawMessage) error {
	log.Printf("event type=%s payload=%s", eventType, payload)
	return nil
}
