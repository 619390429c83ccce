package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"branchq/queue-service/internal/models"
	"branchq/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestRegisterNumberingConcurrent(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	outletID := uuid.NewString()
	seedOutlet(t, ctx, pool, outletID, 4)

	const registrations = 8
	var wg sync.WaitGroup
	numbers := make(chan int, registrations)
	for i := 0; i < registrations; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := st.Register(ctx, store.RegisterInput{
				Name:         fmt.Sprintf("Customer %d", i),
				Mobile:       fmt.Sprintf("07712345%02d", i),
				OutletID:     outletID,
				ServiceTypes: []string{"bill_payment"},
				Languages:    []string{"en"},
				Authorized:   true,
				CreatedAt:    time.Now().UTC(),
			})
			if err != nil {
				t.Errorf("register %d: %v", i, err)
				return
			}
			numbers <- token.TokenNumber
		}(i)
	}
	wg.Wait()
	close(numbers)

	var got []int
	for n := range numbers {
		got = append(got, n)
	}
	sort.Ints(got)
	if len(got) != registrations {
		t.Fatalf("got %d tokens, want %d", len(got), registrations)
	}
	for i, n := range got {
		if n != i+1 {
			t.Fatalf("numbers = %v, want 1..%d with no gaps or duplicates", got, registrations)
		}
	}
}

func TestRegisterDuplicateActive(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	outletID := uuid.NewString()
	seedOutlet(t, ctx, pool, outletID, 4)

	input := store.RegisterInput{
		Name:         "Amara Silva",
		Mobile:       "0771234567",
		OutletID:     outletID,
		ServiceTypes: []string{"bill_payment"},
		Languages:    []string{"en"},
		Authorized:   true,
		CreatedAt:    time.Now().UTC(),
	}

	first, err := st.Register(ctx, input)
	if err != nil {
		t.Fatalf("first register: %v", err)
	}
	if first.TokenNumber != 1 {
		t.Fatalf("first token number = %d, want 1", first.TokenNumber)
	}

	_, err = st.Register(ctx, input)
	var duplicate *store.DuplicateTokenError
	if !errors.As(err, &duplicate) {
		t.Fatalf("second register err = %v, want DuplicateTokenError", err)
	}
	if duplicate.TokenNumber != first.TokenNumber {
		t.Fatalf("conflict carries number %d, want %d", duplicate.TokenNumber, first.TokenNumber)
	}
}

func TestNextTokenConcurrentPulls(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	outletID := uuid.NewString()
	seedOutlet(t, ctx, pool, outletID, 4)
	officerA := seedOfficer(t, ctx, pool, outletID, 1, []string{"bill_payment"}, []string{"en"})
	officerB := seedOfficer(t, ctx, pool, outletID, 2, []string{"bill_payment"}, []string{"en"})

	for i := 0; i < 2; i++ {
		if _, err := st.Register(ctx, store.RegisterInput{
			Name:         fmt.Sprintf("Customer %d", i),
			Mobile:       fmt.Sprintf("07712345%02d", i),
			OutletID:     outletID,
			ServiceTypes: []string{"bill_payment"},
			Languages:    []string{"en"},
			Authorized:   true,
			CreatedAt:    time.Now().UTC(),
		}); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}

	type pullResult struct {
		token models.Token
		err   error
	}
	results := make(chan pullResult, 2)
	var wg sync.WaitGroup
	for _, officerID := range []string{officerA, officerB} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			token, err := st.NextToken(ctx, store.NextTokenInput{
				OfficerID: id,
				Mode:      models.ModeStrict,
				CalledAt:  time.Now().UTC(),
			})
			results <- pullResult{token: token, err: err}
		}(officerID)
	}
	wg.Wait()
	close(results)

	// Two officers pulling at once with two serveable tokens must both get
	// one; the loser of the first claim falls through to the next token
	// instead of seeing an empty queue.
	var ids []string
	for result := range results {
		if result.err != nil {
			t.Fatalf("next token: %v", result.err)
		}
		ids = append(ids, result.token.TokenID)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("tokens = %v, want two distinct assignments", ids)
	}
}

func TestStartBreakActiveAcrossMidnight(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	outletID := uuid.NewString()
	seedOutlet(t, ctx, pool, outletID, 4)
	officerID := seedOfficer(t, ctx, pool, outletID, 1, []string{"bill_payment"}, []string{"en"})

	// A break opened late yesterday and never ended. Even though it falls
	// outside today's rows, it must still block a second break.
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	if _, err := pool.Exec(ctx, `
		INSERT INTO break_logs (break_id, officer_id, started_at)
		VALUES ($1, $2, $3)
	`, uuid.NewString(), officerID, yesterday); err != nil {
		t.Fatalf("insert overnight break: %v", err)
	}

	_, err := st.StartBreak(ctx, officerID, time.Now().UTC())
	if !errors.Is(err, store.ErrBreakActive) {
		t.Fatalf("start break err = %v, want ErrBreakActive", err)
	}

	// Ending it closes exactly the overnight row and frees the officer.
	ended, err := st.EndBreak(ctx, officerID, time.Now().UTC())
	if err != nil {
		t.Fatalf("end break: %v", err)
	}
	if ended.EndedAt == nil {
		t.Fatal("expected ended_at set")
	}

	// With the overnight row closed nothing blocks a fresh break: the
	// cooldown, quota, and budget rules only consider breaks started today.
	started, err := st.StartBreak(ctx, officerID, time.Now().UTC())
	if err != nil {
		t.Fatalf("start break after close: %v", err)
	}
	if started.BreakID == "" {
		t.Fatal("expected a new break row")
	}
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool, Options{})
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}

func seedOutlet(t *testing.T, ctx context.Context, pool *pgxpool.Pool, outletID string, counters int) {
	t.Helper()
	if _, err := pool.Exec(ctx, `
		INSERT INTO outlets (outlet_id, name, counter_count, is_active)
		VALUES ($1, 'Outlet', $2, TRUE)
	`, outletID, counters); err != nil {
		t.Fatalf("insert outlet: %v", err)
	}
}

func seedOfficer(t *testing.T, ctx context.Context, pool *pgxpool.Pool, outletID string, counter int, services, languages []string) string {
	t.Helper()
	officerID := uuid.NewString()
	servicesJSON, err := json.Marshal(services)
	if err != nil {
		t.Fatalf("marshal services: %v", err)
	}
	languagesJSON, err := json.Marshal(languages)
	if err != nil {
		t.Fatalf("marshal languages: %v", err)
	}
	if _, err := pool.Exec(ctx, `
		INSERT INTO officers (officer_id, outlet_id, name, counter_number, assigned_services, languages, status)
		VALUES ($1, $2, 'Officer', $3, $4, $5, 'available')
	`, officerID, outletID, counter, servicesJSON, languagesJSON); err != nil {
		t.Fatalf("insert officer: %v", err)
	}
	return officerID
}
