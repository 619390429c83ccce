package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"branchq/queue-service/internal/cache"
	"branchq/queue-service/internal/config"
	"branchq/queue-service/internal/httpapi"
	"branchq/queue-service/internal/metrics"
	"branchq/queue-service/internal/notify"
	"branchq/queue-service/internal/queue"
	"branchq/queue-service/internal/store/postgres"
	"branchq/queue-service/internal/telemetry"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()

	shutdownTelemetry := telemetry.Setup("queue-service")

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	window := queue.Window{Hour: cfg.ResetHour, Minute: cfg.ResetMinute}
	store := postgres.NewStore(pool, postgres.Options{
		Window: &window,
		BreakPolicy: queue.BreakPolicy{
			Cooldown:    cfg.BreakCooldown,
			MaxPerDay:   cfg.BreakMaxPerDay,
			DailyBudget: cfg.BreakDailyBudget,
		},
		CountryPrefix: cfg.CountryPrefix,
		TxTimeout:     cfg.TxTimeout,
	})

	credentials := cache.New(cfg.CredentialTTL)
	handler := httpapi.NewHandler(store, credentials)
	limiter := httpapi.NewRateLimiter(httpapi.RateLimitConfig{
		IPPerMinute:     cfg.RateLimitPerMinute,
		IPBurst:         cfg.RateLimitBurst,
		OutletPerMinute: cfg.OutletRateLimitPerMinute,
		OutletBurst:     cfg.OutletRateLimitBurst,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/", limiter.Middleware(httpapi.LoggingMiddleware(handler.Routes())))

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(mux, "queue-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stopWorkers := context.WithCancel(context.Background())

	go func() {
		log.Printf("queue-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	worker := notify.NewWorker(store, notify.LogPublisher{}, notify.Config{BatchSize: cfg.NotifyBatchSize})
	go runNotifyWorker(rootCtx, worker, cfg.NotifyInterval)
	go runLongWaitSweep(rootCtx, store, cfg)
	go runDailyReset(rootCtx, store, window)
	go runCacheSweep(rootCtx, credentials)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := shutdownTelemetry(ctx); err != nil {
		log.Printf("telemetry shutdown error: %v", err)
	}
}

func runNotifyWorker(ctx context.Context, worker *notify.Worker, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if _, err := worker.Run(runCtx); err != nil {
				log.Printf("notify worker error: %v", err)
			}
			cancel()
		}
	}
}

func runLongWaitSweep(ctx context.Context, store *postgres.Store, cfg config.Config) {
	if cfg.LongWaitThreshold <= 0 || cfg.LongWaitInterval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.LongWaitInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := store.SweepLongWait(ctx, cfg.LongWaitThreshold, cfg.LongWaitBatchSize)
			if err != nil {
				log.Printf("long-wait sweep error: %v", err)
				continue
			}
			if count > 0 {
				metrics.SweepAlerts.Add(float64(count))
				log.Printf("long-wait sweep alerted %d tokens", count)
			}
		}
	}
}

// runDailyReset sleeps until each window boundary and fires the reset once.
func runDailyReset(ctx context.Context, store *postgres.Store, window queue.Window) {
	for {
		next := window.NextReset(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := store.DailyReset(ctx); err != nil {
				log.Printf("daily reset error: %v", err)
			} else {
				log.Printf("daily reset fired boundary=%s", next.Format(time.RFC3339))
			}
		}
	}
}

func runCacheSweep(ctx context.Context, credentials *cache.Cache) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			credentials.Sweep()
		}
	}
}
