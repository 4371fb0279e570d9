package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"participation/internal/certificate"
	"participation/internal/fraud"
	jwttoken "participation/internal/jwt_token"
	"participation/internal/ledger"
	"participation/internal/participation"
	"participation/internal/platform/config"
	"participation/internal/platform/httpserver"
	"participation/internal/platform/logger"
	"participation/internal/platform/metrics"
	"participation/internal/platform/redis"
	"participation/internal/reconcile"
	"participation/internal/resolution"
	"participation/internal/roles"
	httptransport "participation/internal/transport/http"
)

// main wires stores, services, and the HTTP router, then runs the server
// until a shutdown signal. Business logic lives in the internal services.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx := context.Background()
	m := metrics.New()

	// Record stores: Postgres when configured, in-memory otherwise.
	var (
		records participation.Store
		entries ledger.Store
	)
	if cfg.Postgres.URL != "" {
		db, err := sql.Open("postgres", cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		records = participation.NewPostgresStore(db)
		entries = ledger.NewPostgresStore(db)
		log.Info("using postgres stores")
	} else {
		records = participation.NewInMemoryStore()
		entries = ledger.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(log), ledger.WithMetrics(m)}
	if len(cfg.Kafka.Brokers) > 0 {
		mirror, err := ledger.NewKafkaMirror(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer mirror.Close()
		ledgerOpts = append(ledgerOpts, ledger.WithMirror(mirror))
		log.Info("audit mirror enabled", "topic", cfg.Kafka.Topic)
	}

	audit, err := ledger.NewService(entries, records, ledgerOpts...)
	if err != nil {
		return err
	}
	reconciler, err := reconcile.NewService(records,
		reconcile.WithLogger(log), reconcile.WithMetrics(m))
	if err != nil {
		return err
	}
	detector, err := fraud.NewService(records, entries,
		fraud.WithLogger(log), fraud.WithMetrics(m))
	if err != nil {
		return err
	}
	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	resolutionOpts := []resolution.Option{resolution.WithLogger(log), resolution.WithMetrics(m)}
	certOpts := []certificate.Option{certificate.WithLogger(log)}
	if rdb != nil {
		defer rdb.Close()
		certCache := certificate.NewRedisCache(rdb.Client, 0)
		certOpts = append(certOpts, certificate.WithCache(certCache))
		resolutionOpts = append(resolutionOpts, resolution.WithCertificateCache(certCache))
		log.Info("certificate verification cache enabled")
	}
	resolver, err := resolution.NewService(records, audit, resolutionOpts...)
	if err != nil {
		return err
	}
	verifier, err := certificate.NewService(records, audit, certOpts...)
	if err != nil {
		return err
	}
	assigner, err := roles.NewService(records, audit, roles.WithLogger(log))
	if err != nil {
		return err
	}

	handler := httptransport.NewHandler(httptransport.Deps{
		Reconcile:    reconciler,
		Fraud:        detector,
		Ledger:       audit,
		Resolution:   resolver,
		Certificates: verifier,
		Roles:        assigner,
		Logger:       log,
		Metrics:      m,
		JWTValidator: jwttoken.NewJWTService(cfg.JWTSigningKey, "participation"),
	})

	srv := httpserver.New(cfg.Addr, handler.Router())

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
