package postgres

import (
	"context"
	"encoding/json"
	"time"

	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Outbox rows are written in the same transaction as the state change, so a
// committed transition always has its event and an aborted one never does.
// Delivery happens out of band; see internal/notify.
func insertTokenEvent(ctx context.Context, tx pgx.Tx, eventType string, token models.Token) error {
	payload, err := store.EncodeTokenPayload(token)
	if err != nil {
		return err
	}
	return insertOutboxEvent(ctx, tx, eventType, payload)
}

func insertOfficerEvent(ctx context.Context, tx pgx.Tx, officerID, status string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"officer_id": officerID,
		"status":     status,
	})
	if err != nil {
		return err
	}
	return insertOutboxEvent(ctx, tx, store.EventOfficerStatus, payload)
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, payload json.RawMessage) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4)
	`, uuid.NewString(), eventType, payload, time.Now().UTC())
	return err
}

func (s *Store) ListOutboxEvents(ctx context.Context, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, type, payload_json, created_at
		FROM outbox_events
	`
	args := []interface{}{}
	if !after.IsZero() {
		query += " WHERE created_at > $1 ORDER BY created_at ASC LIMIT $2"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// GetLastOffset and UpdateOffset track the notification worker's position in
// the outbox across restarts.
func (s *Store) GetLastOffset(ctx context.Context) (time.Time, error) {
	var last time.Time
	row := s.pool.QueryRow(ctx, `
		SELECT last_event_at
		FROM notify_offsets
		WHERE id = 1
	`)
	if err := row.Scan(&last); err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return last, nil
}

func (s *Store) UpdateOffset(ctx context.Context, last time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notify_offsets (id, last_event_at)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET last_event_at = EXCLUDED.last_event_at
	`, last)
	return err
}
