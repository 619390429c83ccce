package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/queue"
	"branchq/queue-service/internal/store"

	"github.com/jackc/pgx/v5"
)

type candidate struct {
	tokenID   string
	services  map[string]struct{}
	languages map[string]struct{}
}

// eligibleTokens lists, in token-number order, every candidate the officer
// can serve. Strict mode requires a service intersection and a declared
// language that intersects the officer's languages; a token with no declared
// language is skipped, never wildcard-matched. Bypass ignores capabilities
// entirely. The caller claims entries in order, so a token lost to a
// concurrent officer falls through to the next one instead of surfacing as
// an empty queue.
func eligibleTokens(candidates []candidate, services, languages map[string]struct{}, bypass bool) []string {
	var eligible []string
	for _, c := range candidates {
		if !bypass {
			if !queue.HasIntersection(c.services, services) {
				continue
			}
			if len(c.languages) == 0 {
				continue
			}
			if !queue.HasIntersection(c.languages, languages) {
				continue
			}
		}
		eligible = append(eligible, c.tokenID)
	}
	return eligible
}

func (s *Store) NextToken(ctx context.Context, input store.NextTokenInput) (models.Token, error) {
	calledAt := input.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now().UTC()
	}
	windowStart := s.window.LastReset(calledAt)
	bypass := input.Mode == models.ModeUnmatchedBypass

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

	services := queue.ToSet(officer.servicesRaw)
	languages := queue.ToSet(officer.languagesRaw)
	if !bypass && (len(services) == 0 || len(languages) == 0) {
		err = store.ErrOfficerUnprovisioned
		return models.Token{}, err
	}

	// The scan takes no row locks; the conditional update in assignToken is
	// the claim. A concurrent officer winning a row costs one failed update
	// here, not visibility of the rest of the queue.
	rows, err := tx.Query(ctx, `
		SELECT token_id, service_types, preferred_languages
		FROM tokens
		WHERE outlet_id = $1 AND status = 'waiting' AND created_at >= $2
		ORDER BY token_number ASC
	`, officer.outletID, windowStart)
	if err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var servicesRaw []byte
		var languagesRaw []byte
		if err = rows.Scan(&c.tokenID, &servicesRaw, &languagesRaw); err != nil {
			rows.Close()
			return models.Token{}, mapTimeout(ctx, err)
		}
		c.services = queue.ToSet(servicesRaw)
		c.languages = queue.ToSet(languagesRaw)
		candidates = append(candidates, c)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	eligible := eligibleTokens(candidates, services, languages, bypass)

	var token models.Token
	assigned := false
	for _, tokenID := range eligible {
		token, err = assignToken(ctx, tx, tokenID, input.OfficerID, officer.counterNumber, calledAt, models.StatusWaiting)
		if errors.Is(err, store.ErrAssignConflict) {
			err = nil
			continue
		}
		if err != nil {
			return models.Token{}, mapTimeout(ctx, err)
		}
		assigned = true
		break
	}
	if !assigned {
		if err = tx.Commit(ctx); err != nil {
			return models.Token{}, mapTimeout(ctx, err)
		}
		return models.Token{}, store.ErrNoMatch
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

// assignToken moves a token into service. The status condition is the
// optimistic check: if another officer claimed the row between select and
// update, zero rows come back and the caller sees a conflict.
func assignToken(ctx context.Context, tx pgx.Tx, tokenID, officerID string, counterNumber *int, calledAt time.Time, expectStatus string) (models.Token, error) {
	row := tx.QueryRow(ctx, `
		UPDATE tokens
		SET status = 'in_service',
			assigned_officer_id = $2,
			counter_number = $3,
			called_at = $4,
			started_at = $4
		WHERE token_id = $1 AND status = $5
		RETURNING `+tokenColumns+`
	`, tokenID, officerID, counterNumber, calledAt, expectStatus)
	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Token{}, store.ErrAssignConflict
		}
		return models.Token{}, err
	}
	return token, nil
}

func (s *Store) UnmatchedTokens(ctx context.Context, outletID string) ([]models.Token, error) {
	windowStart := s.window.LastReset(time.Now().UTC())

	rows, err := s.pool.Query(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE outlet_id = $1 AND status IN ('waiting', 'skipped') AND created_at >= $2
		ORDER BY token_number ASC
	`, outletID, windowStart)
	if err != nil {
		return nil, err
	}
	tokens, err := scanTokens(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	officerRows, err := s.pool.Query(ctx, `
		SELECT assigned_services, languages
		FROM officers
		WHERE outlet_id = $1 AND status IN ('available', 'serving')
	`, outletID)
	if err != nil {
		return nil, err
	}
	defer officerRows.Close()

	var online []officerCaps
	for officerRows.Next() {
		var servicesRaw []byte
		var languagesRaw []byte
		if err := officerRows.Scan(&servicesRaw, &languagesRaw); err != nil {
			return nil, err
		}
		online = append(online, officerCaps{
			services:  queue.ToSet(servicesRaw),
			languages: queue.ToSet(languagesRaw),
		})
	}
	if err := officerRows.Err(); err != nil {
		return nil, err
	}

	return uncoveredTokens(tokens, online), nil
}

type officerCaps struct {
	services  map[string]struct{}
	languages map[string]struct{}
}

// uncoveredTokens returns the tokens no online officer can serve. Tokens
// with no declared service or language are excluded: absence of a preference
// is not evidence of a coverage gap.
func uncoveredTokens(tokens []models.Token, online []officerCaps) []models.Token {
	// Small sets on both sides: outlet headcount bounds officers, the day
	// window bounds tokens. A plain scan beats any indexing here.
	var unmatched []models.Token
	for _, token := range tokens {
		services := queue.ToSet(token.ServiceTypes)
		languages := queue.ToSet(token.PreferredLanguages)
		if len(services) == 0 || len(languages) == 0 {
			continue
		}
		covered := false
		for _, officer := range online {
			if queue.HasIntersection(services, officer.services) && queue.HasIntersection(languages, officer.languages) {
				covered = true
				break
			}
		}
		if !covered {
			unmatched = append(unmatched, token)
		}
	}
	return unmatched
}

type lockedOfficer struct {
	outletID      string
	counterNumber *int
	servicesRaw   []byte
	languagesRaw  []byte
	status        string
}

func lockOfficer(ctx context.Context, tx pgx.Tx, officerID string) (lockedOfficer, error) {
	var officer lockedOfficer
	var counterNull sql.NullInt32
	row := tx.QueryRow(ctx, `
		SELECT outlet_id, counter_number, assigned_services, languages, status
		FROM officers
		WHERE officer_id = $1
		FOR UPDATE
	`, officerID)
	if err := row.Scan(&officer.outletID, &counterNull, &officer.servicesRaw, &officer.languagesRaw, &officer.status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return lockedOfficer{}, store.ErrOfficerNotFound
		}
		return lockedOfficer{}, err
	}
	officer.counterNumber = nullIntPtr(counterNull)
	return officer, nil
}

func setOfficerStatus(ctx context.Context, tx pgx.Tx, officerID, status string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE officers
		SET status = $2
		WHERE officer_id = $1
	`, officerID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrOfficerNotFound
	}
	return nil
}
