package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CallToken is the explicit call path: operators use it for priority or VIP
// tokens and for re-calling, so it accepts any non-completed state.
func (s *Store) CallToken(ctx context.Context, input store.TokenActionInput) (models.Token, error) {
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return models.Token{}, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	officer, err := lockOfficer(ctx, tx, input.OfficerID)
	if err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	if officer.status == models.OfficerOnBreak || officer.status == models.OfficerOffline {
		err = store.ErrOfficerUnavailable
		return models.Token{}, err
	}

	status, err := lockTokenStatus(ctx, tx, input.TokenID)
	if err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	if !store.ValidTransition("call", status) {
		err = store.ErrInvalidState
		return models.Token{}, err
	}

	token, err := assignToken(ctx, tx, input.TokenID, input.OfficerID, officer.counterNumber, occurredAt, status)
	if err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = setOfficerStatus(ctx, tx, input.OfficerID, models.OfficerServing); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = insertTokenEvent(ctx, tx, store.EventTokenCalled, token); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	return token, nil
}

// SkipToken parks an in-service token. The token stays visible and
// recallable; it is never removed from the queue.
func (s *Store) SkipToken(ctx context.Context, input store.TokenActionInput) (models.Token, error) {
	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return models.Token{}, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var token models.Token
	row := tx.QueryRow(ctx, `
		UPDATE tokens
		SET status = 'skipped',
			assigned_officer_id = NULL,
			counter_number = NULL
		WHERE token_id = $1 AND status = 'in_service'
		RETURNING `+tokenColumns+`
	`, input.TokenID)
	token, err = scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyMissedUpdate(ctx, tx, input.TokenID)
		}
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = setOfficerStatus(ctx, tx, input.OfficerID, models.OfficerAvailable); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = insertTokenEvent(ctx, tx, store.EventTokenSkipped, token); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	return token, nil
}

// RecallToken brings a skipped token back into service at the officer's
// counter, symmetric to an explicit call.
func (s *Store) RecallToken(ctx context.Context, input store.TokenActionInput) (models.Token, error) {
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return models.Token{}, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	officer, err := lockOfficer(ctx, tx, input.OfficerID)
	if err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	if officer.status == models.OfficerOnBreak || officer.status == models.OfficerOffline {
		err = store.ErrOfficerUnavailable
		return models.Token{}, err
	}

	token, err := assignToken(ctx, tx, input.TokenID, input.OfficerID, officer.counterNumber, occurredAt, models.StatusSkipped)
	if err != nil {
		if errors.Is(err, store.ErrAssignConflict) {
			err = classifyMissedUpdate(ctx, tx, input.TokenID)
		}
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = setOfficerStatus(ctx, tx, input.OfficerID, models.OfficerServing); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = insertTokenEvent(ctx, tx, store.EventTokenRecalled, token); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	return token, nil
}

// CompleteToken closes out service: the token reaches its terminal state, a
// durable service record with a customer-facing reference is written, and
// the officer is released.
func (s *Store) CompleteToken(ctx context.Context, input store.TokenActionInput) (models.Token, error) {
	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return models.Token{}, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var token models.Token
	row := tx.QueryRow(ctx, `
		UPDATE tokens
		SET status = 'completed',
			completed_at = $2
		WHERE token_id = $1 AND status = 'in_service'
		RETURNING `+tokenColumns+`
	`, input.TokenID, occurredAt)
	token, err = scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = classifyMissedUpdate(ctx, tx, input.TokenID)
		}
		return models.Token{}, mapTimeout(ctx, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO service_records (record_id, token_id, officer_id, outlet_id, reference_code, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.NewString(), token.TokenID, input.OfficerID, token.OutletID, ReferenceCode(token.TokenID), occurredAt)
	if err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = setOfficerStatus(ctx, tx, input.OfficerID, models.OfficerAvailable); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = insertTokenEvent(ctx, tx, store.EventTokenCompleted, token); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	return token, nil
}

// SetPriority toggles the advisory flag. No state change, no event: the flag
// only influences operator call order in the UI.
func (s *Store) SetPriority(ctx context.Context, tokenID string) (models.Token, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tokens
		SET is_priority = NOT is_priority
		WHERE token_id = $1
		RETURNING `+tokenColumns+`
	`, tokenID)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, store.ErrTokenNotFound
		}
		return models.Token{}, err
	}
	return token, nil
}

func lockTokenStatus(ctx context.Context, tx pgx.Tx, tokenID string) (string, error) {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT status
		FROM tokens
		WHERE token_id = $1
		FOR UPDATE
	`, tokenID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", store.ErrTokenNotFound
		}
		return "", err
	}
	return status, nil
}

// classifyMissedUpdate distinguishes a missing token from one in the wrong
// state after a conditional update touched zero rows.
func classifyMissedUpdate(ctx context.Context, tx pgx.Tx, tokenID string) error {
	var status string
	row := tx.QueryRow(ctx, `
		SELECT status
		FROM tokens
		WHERE token_id = $1
	`, tokenID)
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrTokenNotFound
		}
		return err
	}
	return store.ErrInvalidState
}

// ReferenceCode derives the short customer-facing reference printed on the
// completion receipt.
func ReferenceCode(tokenID string) string {
	cleaned := strings.ReplaceAll(tokenID, "-", "")
	if len(cleaned) > 8 {
		cleaned = cleaned[:8]
	}
	return "SR-" + strings.ToUpper(cleaned)
}
