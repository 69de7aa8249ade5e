// Package idsvc provides a minimal user identity service with password
// and OAuth provider authentication, bounded profile storage, and a
// password reset flow delivered by email.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create a Service instance and mount its routes
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	svc, err := idsvc.New(idsvc.Config{
//	    DB: db,
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	http.ListenAndServe(":8080", svc.Router())
//
// With Google OAuth and outbound email:
//
//	svc, err := idsvc.New(idsvc.Config{
//	    DB: db,
//	    Google: &idsvc.GoogleConfig{
//	        ClientID: "your-client-id",
//	    },
//	    SMTP: &idsvc.SMTPConfig{
//	        Host: "smtp.example.com",
//	        Port: 587,
//	        From: "noreply@example.com",
//	    },
//	})
package idsvc

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/corvohq/simple-identity/internal/config"
	internalhttp "github.com/corvohq/simple-identity/internal/http"
	"github.com/corvohq/simple-identity/internal/notification"
	"github.com/corvohq/simple-identity/pkg/hash"
	"github.com/corvohq/simple-identity/pkg/identity"
	"github.com/corvohq/simple-identity/pkg/oauth"
	"github.com/corvohq/simple-identity/pkg/store"
)

// Config holds the configuration for the identity service library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// Table is the user table name (default: "users").
	Table string

	// MutableFields lists the profile fields callers may update
	// (default: ["username"]).
	MutableFields []string

	// ResetTokenTTL is the lifetime of password reset tokens
	// (default: 1 hour).
	ResetTokenTTL time.Duration

	// AppBaseURL, when set, turns reset emails into clickable links.
	AppBaseURL string

	// Hash overrides the default argon2id work factors (optional).
	Hash *hash.Params

	// SMTP enables outbound email; without it the reset flow is
	// disabled and reset-request returns 503 (optional).
	SMTP *SMTPConfig

	// Google enables Google OAuth sign-in (optional).
	Google *GoogleConfig

	// Logger is the structured logger (default: slog JSON to stdout).
	Logger *slog.Logger
}

// SMTPConfig holds outbound email configuration.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

// GoogleConfig holds Google OAuth configuration. Code exchange happens
// in the caller's frontend or gateway; the service only verifies the
// resulting ID token, so no client secret is needed here.
type GoogleConfig struct {
	ClientID string
}

// Service is the main identity service instance.
type Service struct {
	config   Config
	db       *sql.DB
	store    *store.Postgres
	hasher   *hash.Hasher
	engine   *identity.Engine
	verifier *oauth.Verifier
	email    *notification.EmailService
}

// New creates a new Service with the given configuration.
// Returns an error if the user table doesn't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*Service, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validateSchema(cfg.DB, cfg.Table); err != nil {
		return nil, err
	}

	st, err := store.NewPostgres(cfg.DB, cfg.Table)
	if err != nil {
		return nil, fmt.Errorf("idsvc: %w", err)
	}

	hasher := hash.New(*cfg.Hash)

	var notifier identity.Notifier
	var email *notification.EmailService
	if cfg.SMTP != nil {
		email = notification.NewEmailService(notification.EmailConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			FromName: cfg.SMTP.FromName,
		})
		notifier = email
	}

	engine := identity.NewEngine(st, hasher, notifier, identity.Config{
		MutableFields: cfg.MutableFields,
		ResetTokenTTL: cfg.ResetTokenTTL,
		AppBaseURL:    cfg.AppBaseURL,
	})

	var verifier *oauth.Verifier
	if cfg.Google != nil {
		verifier = oauth.NewVerifier(oauth.GoogleProvider(cfg.Google.ClientID))
	}

	return &Service{
		config:   cfg,
		db:       cfg.DB,
		store:    st,
		hasher:   hasher,
		engine:   engine,
		verifier: verifier,
		email:    email,
	}, nil
}

// Router returns an http.Handler with all identity routes mounted.
//
// Routes:
//
//	POST   /v1/auth/register               - Register with email/password
//	POST   /v1/auth/login                  - Authenticate with email/password
//	POST   /v1/auth/oauth                  - Sign in or register via provider assertion
//	POST   /v1/auth/change-password        - Change password (requires current one)
//	POST   /v1/auth/password/reset-request - Email a reset token
//	POST   /v1/auth/password/reset         - Consume a reset token
//	GET    /v1/users/{id}/profile          - Read selected profile fields
//	PATCH  /v1/users/{id}/profile          - Update allowed profile fields
//	DELETE /v1/users/{id}                  - Remove an account
//	GET    /health                         - Liveness check
func (s *Service) Router() http.Handler {
	return internalhttp.NewRouter(internalhttp.RouterConfig{
		Logger:             s.config.Logger,
		Engine:             s.engine,
		Verifier:           s.verifier,
		EmailEnabled:       s.email != nil,
		SecurityHeaders:    config.SecurityHeadersConfig{Enabled: true},
		MaxRequestBodySize: 1 << 20,
	})
}

// Handler returns an http.Handler for mounting with http.StripPrefix.
// This is useful when using standard library ServeMux:
//
//	mux := http.NewServeMux()
//	mux.Handle("/identity/", http.StripPrefix("/identity", svc.Handler()))
func (s *Service) Handler() http.Handler {
	return s.Router()
}

// Routes registers all identity routes on an http.ServeMux with the
// given prefix:
//
//	mux := http.NewServeMux()
//	svc.Routes(mux, "/api/identity")
func (s *Service) Routes(mux *http.ServeMux, prefix string) {
	mux.Handle(prefix+"/", http.StripPrefix(prefix, s.Router()))
}

// Engine returns the underlying identity engine for direct use without
// the HTTP layer.
func (s *Service) Engine() *identity.Engine {
	return s.engine
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("idsvc: DB is required")
	}
	if cfg.SMTP != nil {
		if cfg.SMTP.Host == "" || cfg.SMTP.From == "" {
			return errors.New("idsvc: SMTP Host and From are required when SMTP is configured")
		}
	}
	if cfg.Google != nil && cfg.Google.ClientID == "" {
		return errors.New("idsvc: Google ClientID is required when Google is configured")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Table == "" {
		cfg.Table = "users"
	}
	if cfg.Hash == nil {
		params := hash.DefaultParams()
		cfg.Hash = &params
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// validateSchema checks that the user table exists.
func validateSchema(db *sql.DB, table string) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	var name string
	err := db.QueryRow(query, table).Scan(&name)
	if err == sql.ErrNoRows {
		return fmt.Errorf("idsvc: missing table '%s' - run migrations first (see migrations/ folder)", table)
	}
	if err != nil {
		return fmt.Errorf("idsvc: failed to check schema: %w", err)
	}

	return nil
}
