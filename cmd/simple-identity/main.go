package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/corvohq/simple-identity/internal/config"
	httpserver "github.com/corvohq/simple-identity/internal/http"
	"github.com/corvohq/simple-identity/internal/notification"
	"github.com/corvohq/simple-identity/pkg/hash"
	"github.com/corvohq/simple-identity/pkg/identity"
	"github.com/corvohq/simple-identity/pkg/oauth"
	"github.com/corvohq/simple-identity/pkg/store"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Connect to database
	db, err := store.NewDB(store.DBConfig{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	logger.Info("connected to database")

	st, err := store.NewPostgres(db, cfg.UsersTable)
	if err != nil {
		logger.Error("failed to initialize user store", "error", err)
		os.Exit(1)
	}

	hasher := hash.New(hash.Params{
		Time:    uint32(cfg.Argon2Time),
		Memory:  uint32(cfg.Argon2MemoryKB),
		Threads: uint8(cfg.Argon2Threads),
		KeyLen:  32,
		SaltLen: 16,
	})

	// Initialize email service if configured
	var notifier identity.Notifier
	if cfg.HasSMTP() {
		notifier = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
		})
		logger.Info("email service enabled")
	}

	engine := identity.NewEngine(st, hasher, notifier, identity.Config{
		MutableFields: cfg.MutableFields,
		ResetTokenTTL: cfg.ResetTokenTTL,
		AppBaseURL:    cfg.AppBaseURL,
	})

	// Initialize OAuth verifier if configured
	var verifier *oauth.Verifier
	if cfg.HasGoogleOAuth() {
		verifier = oauth.NewVerifier(oauth.GoogleProvider(cfg.GoogleClientID))
		logger.Info("Google OAuth enabled")
	}

	// Create router
	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:             logger,
		Engine:             engine,
		Verifier:           verifier,
		EmailEnabled:       cfg.HasSMTP(),
		SecurityHeaders:    cfg.SecurityHeaders,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
