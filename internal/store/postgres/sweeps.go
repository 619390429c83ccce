package postgres

import (
	"context"
	"encoding/json"
	"time"

	"branchq/queue-service/internal/store"

	"github.com/google/uuid"
)

// SweepLongWait raises a one-shot advisory alert for every token waiting
// longer than threshold. The alerted flag keeps repeat sweeps quiet.
func (s *Store) SweepLongWait(ctx context.Context, threshold time.Duration, batchSize int) (int, error) {
	if threshold <= 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	now := time.Now().UTC()
	cutoff := now.Add(-threshold)
	windowStart := s.window.LastReset(now)

	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx, `
		SELECT token_id, token_number, outlet_id, created_at
		FROM tokens
		WHERE status = 'waiting' AND created_at >= $1 AND created_at <= $2
			AND NOT long_wait_alerted
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $3
	`, windowStart, cutoff, batchSize)
	if err != nil {
		return 0, mapTimeout(ctx, err)
	}

	type lateToken struct {
		tokenID     string
		tokenNumber int
		outletID    string
		createdAt   time.Time
	}
	var late []lateToken
	for rows.Next() {
		var item lateToken
		if err = rows.Scan(&item.tokenID, &item.tokenNumber, &item.outletID, &item.createdAt); err != nil {
			rows.Close()
			return 0, mapTimeout(ctx, err)
		}
		late = append(late, item)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, mapTimeout(ctx, err)
	}

	for _, item := range late {
		_, err = tx.Exec(ctx, `
			INSERT INTO wait_alerts (alert_id, token_id, outlet_id, waiting_since, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.NewString(), item.tokenID, item.outletID, item.createdAt, now)
		if err != nil {
			return 0, mapTimeout(ctx, err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE tokens
			SET long_wait_alerted = TRUE
			WHERE token_id = $1
		`, item.tokenID)
		if err != nil {
			return 0, mapTimeout(ctx, err)
		}

		var payload json.RawMessage
		payload, err = json.Marshal(map[string]interface{}{
			"token_id":      item.tokenID,
			"token_number":  item.tokenNumber,
			"outlet_id":     item.outletID,
			"waiting_since": item.createdAt,
		})
		if err != nil {
			return 0, err
		}
		if err = insertOutboxEvent(ctx, tx, store.EventLongWait, payload); err != nil {
			return 0, mapTimeout(ctx, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, mapTimeout(ctx, err)
	}
	return len(late), nil
}

// DailyReset clears every officer's counter assignment at the window
// boundary. One bulk update inside the transaction keeps it serialized
// against in-flight counter assignments.
func (s *Store) DailyReset(ctx context.Context) error {
	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, `
		UPDATE officers
		SET counter_number = NULL
	`)
	if err != nil {
		return mapTimeout(ctx, err)
	}

	var payload json.RawMessage
	payload, err = json.Marshal(map[string]interface{}{
		"reset_at": time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err = insertOutboxEvent(ctx, tx, store.EventDailyReset, payload); err != nil {
		return mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return mapTimeout(ctx, err)
	}
	return nil
}
