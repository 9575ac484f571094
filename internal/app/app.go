package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"biblioteca/internal/api"
	"biblioteca/internal/auth"
	"biblioteca/internal/catalog"
	"biblioteca/internal/config"
	"biblioteca/internal/covers"
	"biblioteca/internal/documents"
	"biblioteca/internal/keylock"
	"biblioteca/internal/loans"
	"biblioteca/internal/lookup"
	"biblioteca/internal/notify"
	"biblioteca/internal/storage"
	"biblioteca/internal/storage/ch"
	"biblioteca/internal/storage/sqldb"
	"biblioteca/internal/storage/stubs"
	"biblioteca/internal/users"
)

// App represents the application
type App struct {
	config *config.Config
	logger *zap.Logger

	db       storage.Storage
	logins   storage.LoginLog
	chLog    *ch.ClickHouseDB
	users    *users.Service
	telegram *notify.Telegram
	server   *http.Server
}

// New creates and initializes a new application instance
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration from environment variables
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{config: cfg, logger: logger}

	logger.Info("Starting library service",
		zap.String("env", cfg.Env),
		zap.String("storage", cfg.StorageDriver),
		zap.String("login_log", cfg.LoginLogBackend),
	)

	// Initialize database
	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	// Initialize services and HTTP server
	if err := app.initHTTPServer(); err != nil {
		if app.telegram != nil {
			app.telegram.Close()
		}
		_ = app.closeStores()
		return nil, err
	}

	return app, nil
}

// newLogger builds a zap logger for the configured environment and level
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()
	if cfg.Development() {
		zapConfig = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zapConfig.Level = level
	return zapConfig.Build()
}

// initDatabase opens the library store and the login log
func (a *App) initDatabase() error {
	ctx := context.Background()

	var db storage.Storage
	if a.config.StorageDriver == config.StorageMemory {
		a.logger.Info("Using in-memory storage")
		db = stubs.NewMockDB()
	} else {
		a.logger.Info("Connecting to SQL database", zap.String("driver", a.config.StorageDriver))
		sqlDB, err := sqldb.Open(a.config.StorageDriver, a.config.DatabaseDSN, a.logger)
		if err != nil {
			return err
		}
		db = sqlDB
	}

	// Initialize database schema
	if err := db.Initialize(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.db = db
	a.logins = db

	if a.config.LoginLogBackend == config.LoginLogClickHouse {
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", a.config.ClickHouseHost),
			zap.Int("port", a.config.ClickHousePort),
			zap.String("database", a.config.ClickHouseDatabase),
			zap.Bool("tls", a.config.ClickHouseUseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(
			a.config.ClickHouseHost,
			a.config.ClickHousePort,
			a.config.ClickHouseDatabase,
			a.config.ClickHouseUser,
			a.config.ClickHousePassword,
			a.config.ClickHouseUseTLS,
		)
		if err != nil {
			_ = a.closeStores()
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		if err := clickhouseDB.Initialize(ctx); err != nil {
			_ = clickhouseDB.Close()
			_ = a.closeStores()
			return fmt.Errorf("failed to initialize ClickHouse: %w", err)
		}
		a.chLog = clickhouseDB
		a.logins = clickhouseDB
	}

	a.logger.Info("Database initialized successfully")
	return nil
}

// initHTTPServer wires the services behind the HTTP router
func (a *App) initHTTPServer() error {
	coverStore, err := covers.NewStore(a.config.CoversDir)
	if err != nil {
		return fmt.Errorf("failed to open covers directory: %w", err)
	}

	locks := keylock.New()
	isbnLookup := lookup.NewClient(a.config.LookupURL, a.config.LookupTimeout, a.config.LookupRetries, a.logger.Named("lookup"))

	hub := notify.NewHub(a.logger.Named("events"))
	publishers := notify.Multi{hub}
	if a.config.TelegramToken != "" {
		a.telegram, err = notify.NewTelegram(a.config.TelegramToken, a.config.TelegramChatID, a.logger.Named("telegram"))
		if err != nil {
			return err
		}
		publishers = append(publishers, a.telegram)
	}

	a.users = users.NewService(a.db, locks, a.config.SuperAdminID, a.logger.Named("users"))
	services := api.Services{
		Auth:      auth.NewService(a.db, a.logins, locks, []byte(a.config.JWTSecret), a.config.TokenTTL, a.logger.Named("auth")),
		Users:     a.users,
		Catalog:   catalog.NewService(a.db, a.db, coverStore, isbnLookup, locks, a.logger.Named("catalog")),
		Loans:     loans.NewService(a.db, a.db, locks, publishers, a.logger.Named("loans")),
		Documents: documents.NewService(a.db, a.db, a.db, coverStore, a.logger.Named("documents")),
		Logins:    a.logins,
		Events:    hub,
	}

	if a.config.BootstrapAdminPassword != "" {
		if _, err := a.BootstrapAdmin(context.Background(), "", a.config.BootstrapAdminPassword); err != nil {
			return fmt.Errorf("failed to bootstrap administrator: %w", err)
		}
	}

	if !a.config.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(services, a.config.LoginRatePerMinute, a.logger.Named("http"))

	a.server = &http.Server{
		Addr:              a.config.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return nil
}

// BootstrapAdmin creates the super administrator when it does not exist yet
func (a *App) BootstrapAdmin(ctx context.Context, name, password string) (bool, error) {
	created, err := a.users.Bootstrap(ctx, name, password)
	if err != nil {
		return false, err
	}
	if created {
		a.logger.Info("Super administrator bootstrapped", zap.String("user_id", a.config.SuperAdminID))
	}
	return created, nil
}

// Run starts the HTTP server and blocks until a shutdown signal or a server error
func (a *App) Run() error {
	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down...", zap.String("signal", sig.String()))
	case err := <-errChan:
		a.logger.Error("HTTP server error", zap.Error(err))
		_ = a.Shutdown()
		return fmt.Errorf("http server: %w", err)
	}
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	// Shutdown HTTP server gracefully
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("HTTP server shutdown error", zap.Error(err))
		}
	}

	if a.telegram != nil {
		a.telegram.Close()
	}

	err := a.closeStores()
	if err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
	} else {
		a.logger.Info("Shutdown complete")
	}
	_ = a.logger.Sync()
	return err
}

// closeStores closes the login log and the main store
func (a *App) closeStores() error {
	var errs []error
	if a.chLog != nil {
		errs = append(errs, a.chLog.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
