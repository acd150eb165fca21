package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/banking-ledger-core/internal/config"
	"github.com/sheikh-saqib/banking-ledger-core/internal/events/kafka"
	"github.com/sheikh-saqib/banking-ledger-core/internal/events/logpub"
	ledgerhttp "github.com/sheikh-saqib/banking-ledger-core/internal/handler/http"
	interfaces "github.com/sheikh-saqib/banking-ledger-core/internal/interfaces"
	"github.com/sheikh-saqib/banking-ledger-core/internal/ledger"
	"github.com/sheikh-saqib/banking-ledger-core/internal/logger"
	"github.com/sheikh-saqib/banking-ledger-core/internal/seed"
	"github.com/sheikh-saqib/banking-ledger-core/internal/storage/memory"
	"github.com/sheikh-saqib/banking-ledger-core/internal/storage/postgres"
)

func main() {
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, appLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store interfaces.LedgerStore = memory.NewMemoryLedgerStore()
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Migrate(db); err != nil {
			return err
		}
		pgStore := postgres.NewPostgresLedgerStore(db, uuid.NewString())
		store = pgStore
		appLogger.Info("using postgres journal", zap.String("run_id", pgStore.RunID()))
	} else {
		appLogger.Info("using in-memory journal")
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, appLogger.With(zap.String("component", "KafkaPublisher")))
		defer func() {
			if err := kp.Close(); err != nil {
				appLogger.Error("Error closing Kafka publisher", zap.Error(err))
			}
		}()
		publisher = kp
	} else {
		publisher = logpub.NewPublisher(appLogger.With(zap.String("component", "EventLog")))
	}

	ledgerService := ledger.NewLedger(store,
		ledger.WithPublisher(publisher),
		ledger.WithLogger(appLogger.With(zap.String("component", "Ledger"))),
	)

	if cfg.SeedDemo {
		if _, err := seed.Load(ctx, ledgerService, appLogger.With(zap.String("component", "Seed"))); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           ledgerhttp.NewRouter(ledgerService, appLogger.With(zap.String("component", "HTTPHandler"))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		appLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	appLogger.Info("HTTP server gracefully shut down.")
	return nil
}
