package routes

import (
	"net/http"

	"github.com/templui/accounts/internal/app"
	"github.com/templui/accounts/internal/handler"
	"github.com/templui/accounts/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService)
	health := handler.NewHealthHandler(app.Ping)

	requireAuth := middleware.RequireAuth(app.Tokens, app.UserService)

	mux := http.NewServeMux()

	// ============================================================================
	// GOOGLE SIGN-IN
	// ============================================================================

	mux.HandleFunc("GET /auth/login/google/{$}", auth.GoogleLogin)
	mux.HandleFunc("POST /auth/login/google/{$}", auth.GoogleIDToken)
	mux.HandleFunc("GET /auth/login/google/callback/{$}", auth.GoogleCallback)

	// ============================================================================
	// SESSION TOKENS
	// ============================================================================

	mux.HandleFunc("POST /auth/token/refresh/{$}", auth.RefreshToken)
	mux.Handle("GET /auth/me/{$}", requireAuth(http.HandlerFunc(auth.Me)))

	// ============================================================================
	// OPERATIONS
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)
	if app.Metrics != nil {
		mux.Handle("GET /metrics", app.Metrics.Handler())
	}

	return middleware.Chain(mux,
		middleware.RequestLogging,
		middleware.Metrics(app.Metrics),
		middleware.Recover,
	)
}
