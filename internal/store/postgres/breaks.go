package postgres

import (
	"context"
	"errors"
	"math"
	"time"

	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/queue"
	"branchq/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (s *Store) StartBreak(ctx context.Context, officerID string, now time.Time) (models.BreakLog, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return models.BreakLog{}, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// The officer row lock is the single-officer critical section: two
	// near-simultaneous break starts evaluate the rules one after another.
	if _, err = lockOfficer(ctx, tx, officerID); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}

	// The active-row check is deliberately not day-scoped: a break left open
	// across midnight still blocks a new one. Only the quota, cooldown, and
	// budget rules run over the calendar day.
	var active bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM break_logs
			WHERE officer_id = $1 AND ended_at IS NULL
		)
	`, officerID)
	if err = row.Scan(&active); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}
	if active {
		err = store.ErrBreakActive
		return models.BreakLog{}, err
	}

	today, err := listBreaksSince(ctx, tx, officerID, queue.DayStart(now))
	if err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}

	if denial := s.breakPolicy.EvaluateStart(today, now); denial != nil {
		switch denial.Reason {
		case queue.BreakDeniedActive:
			err = store.ErrBreakActive
		case queue.BreakDeniedCooldown:
			err = &store.CooldownError{RemainingMinutes: denial.RemainingMinutes}
		case queue.BreakDeniedQuota:
			err = store.ErrBreakQuota
		default:
			err = store.ErrBreakBudget
		}
		return models.BreakLog{}, err
	}

	breakLog := models.BreakLog{
		BreakID:   uuid.NewString(),
		OfficerID: officerID,
		StartedAt: now,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO break_logs (break_id, officer_id, started_at)
		VALUES ($1, $2, $3)
	`, breakLog.BreakID, breakLog.OfficerID, breakLog.StartedAt)
	if err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}

	if err = setOfficerStatus(ctx, tx, officerID, models.OfficerOnBreak); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}

	if err = insertOfficerEvent(ctx, tx, officerID, models.OfficerOnBreak); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}
	return breakLog, nil
}

func (s *Store) EndBreak(ctx context.Context, officerID string, now time.Time) (models.BreakLog, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return models.BreakLog{}, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = lockOfficer(ctx, tx, officerID); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}

	breakLog := models.BreakLog{OfficerID: officerID}
	row := tx.QueryRow(ctx, `
		UPDATE break_logs
		SET ended_at = $2
		WHERE officer_id = $1 AND ended_at IS NULL
		RETURNING break_id, started_at
	`, officerID, now)
	if err = row.Scan(&breakLog.BreakID, &breakLog.StartedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrNoActiveBreak
		}
		return models.BreakLog{}, mapTimeout(ctx, err)
	}
	breakLog.EndedAt = &now
	breakLog.DurationMinutes = int(math.Round(now.Sub(breakLog.StartedAt).Minutes()))

	if err = setOfficerStatus(ctx, tx, officerID, models.OfficerAvailable); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}

	if err = insertOfficerEvent(ctx, tx, officerID, models.OfficerAvailable); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.BreakLog{}, mapTimeout(ctx, err)
	}
	return breakLog, nil
}

func listBreaksSince(ctx context.Context, tx pgx.Tx, officerID string, since time.Time) ([]models.BreakLog, error) {
	rows, err := tx.Query(ctx, `
		SELECT break_id, officer_id, started_at, ended_at
		FROM break_logs
		WHERE officer_id = $1 AND started_at >= $2
		ORDER BY started_at ASC
	`, officerID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.BreakLog
	for rows.Next() {
		var log models.BreakLog
		var endedAt *time.Time
		if err := rows.Scan(&log.BreakID, &log.OfficerID, &log.StartedAt, &endedAt); err != nil {
			return nil, err
		}
		log.EndedAt = endedAt
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
