package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	browseradapter "inclusiv/internal/adapters/browser"
	emailadapter "inclusiv/internal/adapters/email"
	httpadapter "inclusiv/internal/adapters/http"
	"inclusiv/internal/adapters/memory"
	pg "inclusiv/internal/adapters/postgres"
	redisadapter "inclusiv/internal/adapters/redis"
	"inclusiv/internal/config"
	"inclusiv/internal/logger"
	"inclusiv/internal/metrics"
	"inclusiv/internal/ports"
	leadsvc "inclusiv/internal/services/leads"
	outreachsvc "inclusiv/internal/services/outreach"
	scansvc "inclusiv/internal/services/scanner"
	scanworker "inclusiv/internal/workers/scanrunner"
	"inclusiv/internal/workers/sweeper"
)

const shutdownTimeout = 15 * time.Second

// store is everything the services need from persistence.
type store interface {
	ports.ScanRepository
	ports.LeadRepository
	ports.EmailRepository
	ports.ScanQueue
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, cfgErr := config.Load()
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrNoDatabase) {
		return cfgErr
	}
	lg, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: !cfg.Production()})
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		repo   store
		health func(context.Context) error
	)
	if cfg.DatabaseURL == "" {
		if cfg.Production() {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		lg.Warn("DATABASE_URL not set, using in-memory store")
		repo = memory.New()
	} else {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if cfg.RunMigrations {
			n, err := db.Migrate(ctx)
			if err != nil {
				return err
			}
			lg.Info("migrations applied", zap.Int("count", n))
		}
		repo, health = db, db.Ping
	}

	m := metrics.New()

	var events ports.EventPublisher
	if cfg.RedisAddress != "" {
		client, err := redisadapter.NewClient(redisadapter.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			lg.Warn("redis unavailable, scan events disabled", zap.Error(err))
		} else {
			defer client.Close()
			events = redisadapter.NewPublisher(client, lg)
		}
	}

	var sender ports.EmailSender
	if cfg.ResendAPIKey != "" {
		sender = emailadapter.NewResend(cfg.ResendAPIKey, cfg.EmailFrom, lg)
	} else {
		lg.Warn("RESEND_API_KEY not set, emails are logged only")
		sender = emailadapter.NewLog(lg)
	}

	auditor := browseradapter.New(browseradapter.Config{
		ControlURL:   cfg.BrowserURL,
		AxeScriptURL: cfg.AxeScriptURL,
		Logger:       lg,
	})
	defer auditor.Close()

	scanner := scansvc.New(scansvc.Deps{
		Scans:        repo,
		Auditor:      auditor,
		Events:       events,
		Metrics:      m,
		Logger:       lg,
		AuditTimeout: cfg.AuditTimeout,
	})
	outreach := outreachsvc.New(outreachsvc.Deps{
		Emails:      repo,
		Leads:       repo,
		Sender:      sender,
		BatchSize:   cfg.SweepBatchSize,
		MaxAttempts: cfg.EmailMaxAttempts,
		Metrics:     m,
		Logger:      lg,
	})
	leads := leadsvc.New(repo, outreach, lg)

	workersDone := scanworker.Run(ctx, repo, scanner, scanworker.Options{
		Concurrency:  cfg.ScanWorkers,
		PollInterval: 500 * time.Millisecond,
		Logger:       lg,
	})
	if cfg.ScanWorkers > 0 {
		lg.Info("scan workers started", zap.Int("count", cfg.ScanWorkers))
	}

	sweep, err := sweeper.New(outreach, cfg.SweepSchedule, lg)
	if err != nil {
		return err
	}
	sweep.Start()
	defer sweep.Stop()

	api := httpadapter.New(httpadapter.Deps{
		Scanner:  scanner,
		Leads:    leads,
		Outreach: outreach,
		Metrics:  m.Handler(),
		Health:   health,
		Logger:   lg,
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	lg.Info("listening", zap.String("addr", cfg.ListenAddr), zap.String("env", cfg.Env))

	select {
	case <-ctx.Done():
		lg.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	select {
	case <-workersDone:
	case <-shutdownCtx.Done():
		lg.Warn("scan workers did not stop in time")
	}
	return nil
}
