// Package server wires the protection core behind an HTTP API: it opens
// storage, applies migrations, builds the encrypting stores and auth
// services, and runs the server with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/QTMarketing/cps-sub000/internal/audit"
	"github.com/QTMarketing/cps-sub000/internal/auth"
	"github.com/QTMarketing/cps-sub000/internal/authz"
	"github.com/QTMarketing/cps-sub000/internal/logging"
	"github.com/QTMarketing/cps-sub000/internal/models"
	"github.com/QTMarketing/cps-sub000/internal/protect"
	"github.com/QTMarketing/cps-sub000/internal/server/config"
	"github.com/QTMarketing/cps-sub000/internal/server/storage"
)

const shutdownTimeout = 10 * time.Second

// retentionInterval is how often the audit retention sweep runs.
const retentionInterval = 24 * time.Hour

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	handler  http.Handler
	auditSvc *audit.Service
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.NewJSONLogger()

	db, err := storage.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := storage.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	protector, err := protect.NewProtector(cfg.MasterSecret, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	auditSvc := audit.NewService(audit.NewPostgresRepository(db), logger)
	users := storage.NewPostgresUsers(db)

	banks := protect.Wrap[models.BankAccount](storage.NewPostgresBanks(db), protector)
	checks := protect.Wrap[models.Check](storage.NewPostgresChecks(db), protector)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenValidityDuration)
	authSvc := auth.NewService(users, tokens, auditSvc, logger)
	gates := authz.NewGates(tokens, logger)
	stepUp := auth.NewStepUpPolicy(cfg.StepUpAmountLimitCents)

	exporter := audit.NewS3Exporter(audit.S3Settings{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})

	handlers := NewHandlers(logger, authSvc, tokens, gates, stepUp, banks, checks, users, auditSvc, exporter)

	return &App{
		config:   cfg,
		logger:   logger,
		db:       db,
		handler:  NewRouter(handlers),
		auditSvc: auditSvc,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: app.handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(shutdownCtx, "server shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startRetentionSweeper(ctx context.Context) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.auditSvc.RetentionSweep(ctx, app.config.AuditRetentionDays); err != nil {
				app.logger.Error(ctx, "audit retention sweep failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startRetentionSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
}
