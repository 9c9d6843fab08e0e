package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/wzin/datawipe/internal/api"
	"github.com/wzin/datawipe/internal/audit"
	"github.com/wzin/datawipe/internal/config"
	"github.com/wzin/datawipe/internal/engine"
	"github.com/wzin/datawipe/internal/events"
	"github.com/wzin/datawipe/internal/mail"
	"github.com/wzin/datawipe/internal/platform/collab"
	"github.com/wzin/datawipe/internal/platform/gemini"
	"github.com/wzin/datawipe/internal/platform/logger"
	"github.com/wzin/datawipe/internal/platform/postgres"
	"github.com/wzin/datawipe/internal/platform/vault"
	"github.com/wzin/datawipe/internal/service"
	"github.com/wzin/datawipe/internal/sites"
)

// options carries the command-line flags into application setup.
type options struct {
	migrationsDir  string
	skipMigrations bool
	siteProfiles   string
}

// application holds the wired components for the lifetime of the
// process.
type application struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sql.DB

	dispatcher *engine.Dispatcher
	correlator *engine.Correlator
	retention  *engine.Retention
	handler    *api.DeletionHandler
}

// newApplication loads configuration and wires every component.
func newApplication(ctx context.Context, opts options) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("setting up logger: %w", err)
	}
	log.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel))

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if !opts.skipMigrations {
		if err := applyMigrations(ctx, db, opts.migrationsDir, log); err != nil {
			return nil, err
		}
	}

	// Stores and cross-cutting collaborators.
	taskStore := postgres.NewPostgresTaskStore(db, log)
	batchStore := postgres.NewPostgresBatchStore(db, log)
	confirmationStore := postgres.NewPostgresConfirmationStore(db, log)
	auditStore := postgres.NewPostgresAuditStore(db, log)
	recorder := audit.NewRecorder(auditStore, log)
	feed := events.NewFeed(0, log)

	// External collaborator clients.
	accountClient := collab.NewAccountClient(cfg.Collab.AccountServiceURL, cfg.Collab.RequestTimeout)
	automator := collab.NewAutomatorClient(cfg.Collab.AutomationURL, cfg.Collab.RequestTimeout)
	mailClient := collab.NewMailClient(
		cfg.Collab.MailRelayURL, cfg.Collab.RequestTimeout,
		cfg.Mail.FromAddress, cfg.Mail.FromName)
	catalog := buildCatalog(cfg.Collab, opts.siteProfiles, log)

	decryptor, err := vault.New(cfg.Vault, log)
	if err != nil {
		return nil, fmt.Errorf("initializing credential vault: %w", err)
	}

	// The Gemini drafter is optional; without an API key the email
	// executor falls back to the static erasure template.
	var drafter mail.Drafter
	if cfg.LLM.GeminiAPIKey != "" {
		geminiDrafter, err := gemini.NewDrafter(ctx, log, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("initializing email drafter: %w", err)
		}
		drafter = geminiDrafter
		log.Info("gemini email drafter enabled", slog.String("model", cfg.LLM.ModelName))
	}

	// Engine components.
	selector := engine.NewMethodSelector(catalog, log)
	retry := engine.NewRetryController(cfg.Engine)
	executors := []engine.MethodExecutor{
		engine.NewAutomatedExecutor(accountClient, catalog, automator, log),
		engine.NewEmailExecutor(accountClient, catalog, mailClient, drafter, cfg.Mail, log),
	}
	dispatcher := engine.NewDispatcher(
		cfg.Engine, taskStore, selector, retry, recorder, feed, executors, log)
	correlator := engine.NewCorrelator(
		cfg.Engine, db, mailClient, taskStore, confirmationStore, recorder, feed, log)
	retention := engine.NewRetention(cfg.Engine, db, taskStore, recorder, feed, log)

	// Operator-facing surface.
	svc := service.NewDeletionService(
		cfg.Engine, db,
		taskStore, batchStore, accountClient, decryptor,
		recorder, feed, dispatcher, retention, log)
	svc.SetInFlightFunc(dispatcher.InFlight)

	return &application{
		cfg:        cfg,
		logger:     log,
		db:         db,
		dispatcher: dispatcher,
		correlator: correlator,
		retention:  retention,
		handler:    api.NewDeletionHandler(svc, feed, log),
	}, nil
}

// openDatabase opens and verifies the connection pool.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// applyMigrations brings the schema up to date with goose.
func applyMigrations(ctx context.Context, db *sql.DB, dir string, log *slog.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	log.Info("database migrations applied", slog.String("dir", dir))
	return nil
}

// buildCatalog wires the site-metadata catalog: the remote service when
// configured, otherwise the local profiles file, otherwise an empty
// catalog that routes every site to the email method.
func buildCatalog(cfg config.CollabConfig, profilesPath string, log *slog.Logger) sites.Catalog {
	if cfg.SiteCatalogURL != "" {
		upstream := collab.NewCatalogClient(cfg.SiteCatalogURL, cfg.RequestTimeout)
		return sites.NewCachedCatalog(upstream, cfg.CatalogTTL, log)
	}

	if profilesPath != "" {
		profiles, err := sites.LoadProfiles(profilesPath)
		if err != nil {
			log.Warn("failed to load site profiles, falling back to empty catalog",
				slog.String("path", profilesPath),
				slog.String("error", err.Error()))
			return sites.NewStaticCatalog(nil)
		}
		log.Info("site profiles loaded",
			slog.String("path", profilesPath),
			slog.Int("count", len(profiles)))
		return sites.NewStaticCatalog(profiles)
	}

	log.Warn("no site catalog configured, all deletions will use the email method")
	return sites.NewStaticCatalog(nil)
}
