package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/templui/accounts/internal/config"
	"github.com/templui/accounts/internal/db"
	"github.com/templui/accounts/internal/metrics"
	"github.com/templui/accounts/internal/provider"
	"github.com/templui/accounts/internal/repository"
	"github.com/templui/accounts/internal/service"
	"github.com/templui/accounts/internal/token"
)

type App struct {
	Cfg         *config.Config
	DB          *sqlx.DB
	Metrics     *metrics.Metrics
	Tokens      *token.Issuer
	AuthService *service.AuthService
	UserService *service.UserService
}

func New(cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	issuer, err := token.NewIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		_ = db.Close(database)
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}

	var appMetrics *metrics.Metrics
	if cfg.MetricsEnabled {
		appMetrics = metrics.New()
	}

	// Google client; missing credentials are reported per request
	googleClient := provider.NewClient(provider.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURI:  cfg.GoogleRedirectURI,
		Timeout:      cfg.GoogleHTTPTimeout,
	}, &http.Client{})

	// Repositories
	userRepository := repository.NewUserRepository(database)

	// Services
	authService := service.NewAuthService(userRepository, googleClient, issuer, appMetrics)
	userService := service.NewUserService(userRepository)

	return &App{
		Cfg:         cfg,
		DB:          database,
		Metrics:     appMetrics,
		Tokens:      issuer,
		AuthService: authService,
		UserService: userService,
	}, nil
}

func (a *App) Ping(ctx context.Context) error {
	return db.Ping(ctx, a.DB)
}

func (a *App) Close() error {
	return db.Close(a.DB)
}
