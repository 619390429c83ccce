package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/queue"
	"branchq/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool          *pgxpool.Pool
	window        queue.Window
	breakPolicy   queue.BreakPolicy
	countryPrefix string
	txTimeout     time.Duration
}

type Options struct {
	// Window is the reset boundary; nil means the noon default. A pointer so
	// an explicit midnight boundary stays distinguishable from unset.
	Window        *queue.Window
	BreakPolicy   queue.BreakPolicy
	CountryPrefix string
	TxTimeout     time.Duration
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	window := queue.DefaultWindow()
	if options.Window != nil {
		window = *options.Window
	}
	policy := options.BreakPolicy
	if policy.Cooldown == 0 && policy.MaxPerDay == 0 && policy.DailyBudget == 0 {
		policy = queue.DefaultBreakPolicy()
	}
	timeout := options.TxTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Store{
		pool:          pool,
		window:        window,
		breakPolicy:   policy,
		countryPrefix: options.CountryPrefix,
		txTimeout:     timeout,
	}
}

// begin opens a transaction under the store's timeout bound. The returned
// cancel must be deferred by the caller.
func (s *Store) begin(ctx context.Context) (context.Context, context.CancelFunc, pgx.Tx, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		cancel()
		return nil, nil, nil, mapTimeout(ctx, err)
	}
	return ctx, cancel, tx, nil
}

func mapTimeout(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return store.ErrTimeout
	}
	return err
}

func (s *Store) Register(ctx context.Context, input store.RegisterInput) (models.Token, error) {
	if !input.Authorized {
		return models.Token{}, store.ErrNotAuthorized
	}

	mobile := NormalizeMobile(input.Mobile, s.countryPrefix)

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	windowStart := s.window.LastReset(createdAt)

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

	// Locking the outlet row serializes duplicate detection and token
	// numbering for the outlet: two concurrent registrations cannot both
	// read the same MAX(token_number).
	var counterCount int
	var isActive bool
	row := tx.QueryRow(ctx, `
		SELECT counter_count, is_active
		FROM outlets
		WHERE outlet_id = $1
		FOR UPDATE
	`, input.OutletID)
	if err = row.Scan(&counterCount, &isActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrOutletNotFound
		}
		return models.Token{}, mapTimeout(ctx, err)
	}
	if !isActive {
		err = store.ErrOutletInactive
		return models.Token{}, err
	}

	var existingNumber int
	row = tx.QueryRow(ctx, `
		SELECT t.token_number
		FROM tokens t
		JOIN customers c ON c.customer_id = t.customer_id
		WHERE c.mobile = $1 AND t.outlet_id = $2
			AND t.status IN ('waiting', 'in_service')
			AND t.created_at >= $3
		ORDER BY t.token_number DESC
		LIMIT 1
	`, mobile, input.OutletID, windowStart)
	if err = row.Scan(&existingNumber); err == nil {
		err = &store.DuplicateTokenError{TokenNumber: existingNumber}
		return models.Token{}, err
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return models.Token{}, mapTimeout(ctx, err)
	}
	err = nil

	var customerID string
	row = tx.QueryRow(ctx, `
		INSERT INTO customers (customer_id, name, mobile)
		VALUES ($1, $2, $3)
		ON CONFLICT (mobile) DO UPDATE SET name = EXCLUDED.name
		RETURNING customer_id
	`, uuid.NewString(), input.Name, mobile)
	if err = row.Scan(&customerID); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	var tokenNumber int
	row = tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(token_number), 0) + 1
		FROM tokens
		WHERE outlet_id = $1 AND created_at >= $2
	`, input.OutletID, windowStart)
	if err = row.Scan(&tokenNumber); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	servicesJSON, err := json.Marshal(input.ServiceTypes)
	if err != nil {
		return models.Token{}, err
	}
	languagesJSON, err := json.Marshal(input.Languages)
	if err != nil {
		return models.Token{}, err
	}

	token := models.Token{
		TokenID:            uuid.NewString(),
		TokenNumber:        tokenNumber,
		OutletID:           input.OutletID,
		CustomerID:         customerID,
		Status:             models.StatusWaiting,
		ServiceTypes:       input.ServiceTypes,
		PreferredLanguages: input.Languages,
		CreatedAt:          createdAt,
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO tokens (
			token_id, token_number, outlet_id, customer_id, status,
			service_types, preferred_languages, is_priority, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8)
	`, token.TokenID, token.TokenNumber, token.OutletID, token.CustomerID,
		token.Status, servicesJSON, languagesJSON, token.CreatedAt)
	if err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = insertTokenEvent(ctx, tx, store.EventNewToken, token); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Token{}, mapTimeout(ctx, err)
	}
	return token, nil
}

func (s *Store) GetToken(ctx context.Context, tokenID string) (models.Token, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tokenColumns+`
		FROM tokens
		WHERE token_id = $1
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

func (s *Store) ListWaiting(ctx context.Context, outletID string) ([]models.Token, error) {
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
	defer rows.Close()
	return scanTokens(rows)
}

const tokenColumns = `token_id, token_number, outlet_id, customer_id, status,
	service_types, preferred_languages, is_priority,
	assigned_officer_id, counter_number,
	created_at, called_at, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanToken(row rowScanner) (models.Token, error) {
	var token models.Token
	var servicesRaw []byte
	var languagesRaw []byte
	var officerNull sql.NullString
	var counterNull sql.NullInt32
	var calledAtNull sql.NullTime
	var startedAtNull sql.NullTime
	var completedAtNull sql.NullTime
	if err := row.Scan(
		&token.TokenID, &token.TokenNumber, &token.OutletID, &token.CustomerID,
		&token.Status, &servicesRaw, &languagesRaw, &token.IsPriority,
		&officerNull, &counterNull,
		&token.CreatedAt, &calledAtNull, &startedAtNull, &completedAtNull,
	); err != nil {
		return models.Token{}, err
	}
	token.ServiceTypes = queue.SetToSlice(queue.ToSet(servicesRaw))
	token.PreferredLanguages = queue.SetToSlice(queue.ToSet(languagesRaw))
	token.AssignedOfficerID = nullStringPtr(officerNull)
	token.CounterNumber = nullIntPtr(counterNull)
	token.CalledAt = nullTimePtr(calledAtNull)
	token.StartedAt = nullTimePtr(startedAtNull)
	token.CompletedAt = nullTimePtr(completedAtNull)
	return token, nil
}

func scanTokens(rows pgx.Rows) ([]models.Token, error) {
	var tokens []models.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tokens, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}

func nullIntPtr(value sql.NullInt32) *int {
	if !value.Valid {
		return nil
	}
	n := int(value.Int32)
	return &n
}

// NormalizeMobile strips everything but digits and folds a local leading
// zero into the configured country prefix, so the same phone always maps to
// one customer row.
func NormalizeMobile(raw, countryPrefix string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	mobile := digits.String()
	if countryPrefix != "" {
		if strings.HasPrefix(mobile, "0") {
			return countryPrefix + mobile[1:]
		}
		if !strings.HasPrefix(mobile, countryPrefix) {
			return countryPrefix + mobile
		}
	}
	return mobile
}
