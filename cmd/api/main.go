package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"installments/internal/engine"
	"installments/internal/httpapi"
	"installments/internal/money"
	"installments/internal/notify"
	"installments/internal/store/postgres"
	"installments/pkg/config"
	"installments/pkg/db"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		log.Println("migrations applied")
	}

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	store := postgres.New(pool)
	eng := engine.New(store, notify.NewLogSink(cfg.AppEnv != "prod"), engine.Options{
		Rules:              money.NewRules(mustDecimal(cfg.Engine.Tolerance)),
		PendingTimeout:     cfg.Engine.PendingTimeout,
		MonthlyChangeLimit: mustDecimal(cfg.Engine.MonthlyChangeLimit),
	})

	go runSweep(ctx, eng, cfg.Engine.SweepInterval)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(httpapi.Dependencies{Cfg: cfg, Engine: eng, Store: store}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s (env=%s)", cfg.HTTPAddr, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("server: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
		os.Exit(1)
	}
}

// runSweep auto-rejects pending payments that outlived the confirmation
// window. One failed sweep pass never stops the loop.
func runSweep(ctx context.Context, eng *engine.Engine, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := eng.SweepExpired(ctx)
			if err != nil {
				log.Printf("sweep: rejected %d, errors: %v", n, err)
			} else if n > 0 {
				log.Printf("sweep: rejected %d expired payments", n)
			}
		}
	}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		log.Fatalf("invalid decimal config value %q: %v", s, err)
	}
	return d
}
