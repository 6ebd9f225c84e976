package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/templui/accounts/internal/ctxkeys"
	"github.com/templui/accounts/internal/model"
	"github.com/templui/accounts/internal/repository"
	"github.com/templui/accounts/internal/service"
	"github.com/templui/accounts/internal/token"
)

type AccessTokenParser interface {
	ParseAccess(accessToken string) (*token.Claims, error)
}

type UserLoader interface {
	ActiveByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth resolves a bearer access token to an active user and adds it
// to the context. Bad credentials are answered with 401, store failures
// with 500.
func RequireAuth(tokens AccessTokenParser, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "Authentication credentials were not provided.")
				return
			}

			claims, err := tokens.ParseAccess(raw)
			if err != nil {
				slog.Debug("access token rejected", "error", err)
				unauthorized(w, "Token is invalid or expired")
				return
			}

			user, err := users.ActiveByID(r.Context(), claims.UserID)
			if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrUserInactive) {
				slog.Debug("token user unavailable", "error", err, "user_id", claims.UserID)
				unauthorized(w, "User not found or inactive")
				return
			}
			if err != nil {
				slog.Error("failed to load token user", "error", err, "user_id", claims.UserID)
				writeDetail(w, http.StatusInternalServerError, "unexpected error")
				return
			}

			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeDetail(w, http.StatusUnauthorized, detail)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
