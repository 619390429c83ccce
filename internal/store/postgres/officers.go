package postgres

import (
	"context"
	"errors"

	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/queue"
	"branchq/queue-service/internal/store"

	"github.com/jackc/pgx/v5"
)

func (s *Store) OfficerLogin(ctx context.Context, input store.LoginInput) (models.Officer, error) {
	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return models.Officer{}, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	locked, err := lockOfficer(ctx, tx, input.OfficerID)
	if err != nil {
		return models.Officer{}, mapTimeout(ctx, err)
	}

	var counterCount int
	row := tx.QueryRow(ctx, `
		SELECT counter_count
		FROM outlets
		WHERE outlet_id = $1
	`, locked.outletID)
	if err = row.Scan(&counterCount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrOutletNotFound
		}
		return models.Officer{}, mapTimeout(ctx, err)
	}
	if input.CounterNumber < 1 || input.CounterNumber > counterCount {
		err = store.ErrCounterCapacity
		return models.Officer{}, err
	}

	officer, err := updateOfficer(ctx, tx, input.OfficerID, models.OfficerAvailable, &input.CounterNumber)
	if err != nil {
		return models.Officer{}, mapTimeout(ctx, err)
	}

	if err = insertOfficerEvent(ctx, tx, input.OfficerID, models.OfficerAvailable); err != nil {
		return models.Officer{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Officer{}, mapTimeout(ctx, err)
	}
	return officer, nil
}

func (s *Store) OfficerLogout(ctx context.Context, officerID string) (models.Officer, error) {
	ctx, cancel, tx, err := s.begin(ctx)
	if err != nil {
		return models.Officer{}, err
	}
	defer cancel()
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = lockOfficer(ctx, tx, officerID); err != nil {
		return models.Officer{}, mapTimeout(ctx, err)
	}

	officer, err := updateOfficer(ctx, tx, officerID, models.OfficerOffline, nil)
	if err != nil {
		return models.Officer{}, mapTimeout(ctx, err)
	}

	if err = insertOfficerEvent(ctx, tx, officerID, models.OfficerOffline); err != nil {
		return models.Officer{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Officer{}, mapTimeout(ctx, err)
	}
	return officer, nil
}

func updateOfficer(ctx context.Context, tx pgx.Tx, officerID, status string, counterNumber *int) (models.Officer, error) {
	var officer models.Officer
	var servicesRaw []byte
	var languagesRaw []byte
	var counterOut *int
	row := tx.QueryRow(ctx, `
		UPDATE officers
		SET status = $2,
			counter_number = $3
		WHERE officer_id = $1
		RETURNING officer_id, outlet_id, name, counter_number, assigned_services, languages, status
	`, officerID, status, counterNumber)
	if err := row.Scan(&officer.OfficerID, &officer.OutletID, &officer.Name, &counterOut, &servicesRaw, &languagesRaw, &officer.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Officer{}, store.ErrOfficerNotFound
		}
		return models.Officer{}, err
	}
	officer.CounterNumber = counterOut
	officer.AssignedServices = queue.SetToSlice(queue.ToSet(servicesRaw))
	officer.Languages = queue.SetToSlice(queue.ToSet(languagesRaw))
	return officer, nil
}
