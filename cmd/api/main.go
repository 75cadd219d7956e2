package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hisaab/internal/config"
	"hisaab/internal/database"
	"hisaab/internal/docstore"
	"hisaab/internal/form"
	"hisaab/internal/identity"
	"hisaab/internal/logger"
	"hisaab/internal/notify"
	"hisaab/internal/server"
	"hisaab/internal/services"
	"hisaab/internal/validator"

	"github.com/gin-gonic/gin"
)

// @title           Hisaab API
// @version         1.0
// @description     Hisaab records personal income, expenses, transfers and loans through a live transaction entry form.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	var err error
	if len(os.Args) > 1 && os.Args[1] == "token" {
		err = issueToken(os.Args[2:])
	} else {
		err = run()
	}
	if err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Register()

	// Open the document store
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	if err := dbManager.RunMigrations(); err != nil {
		_ = dbManager.Close()
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	store := docstore.NewLive(dbManager.Store())
	defer func() {
		if err := store.Close(); err != nil {
			log.Warnf("document store close error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Forms
	registry := form.NewRegistry(store, form.RegistryConfig{
		IdleTimeout:     appConfig.FormIdleTimeout,
		MaxFormsPerUser: appConfig.MaxFormsPerUser,
		FeedSize:        appConfig.NotifyBufferSize,
	}, notify.NewLogNotifier(logger.Named("notify")))
	// Also registered on the HTTP server so event streams end during shutdown.
	defer registry.Shutdown()
	go registry.Run(ctx)

	router := server.NewRouter(server.Dependencies{
		Config:       appConfig,
		Verifier:     identity.NewTokens(appConfig.JWTSecret, appConfig.JWTIssuer, appConfig.JWTExpirationDur),
		Accounts:     services.NewAccountService(store),
		Payees:       services.NewPayeeService(store),
		Transactions: services.NewTransactionService(store),
		Audit:        services.NewAuditService(store),
		Forms:        registry,
	})

	srv := server.NewHTTPServer(":"+appConfig.Port, router, registry)

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Hisaab backend server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// issueToken prints a bearer token for a user id. It stands in for the
// external identity provider during local development.
func issueToken(args []string) error {
	if len(args) != 1 || args[0] == "" {
		return fmt.Errorf("usage: api token <userID>")
	}
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	token, err := identity.NewTokens(appConfig.JWTSecret, appConfig.JWTIssuer, appConfig.JWTExpirationDur).Issue(args[0])
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}
	fmt.Println(token)
	return nil
}
