package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/templui/accounts/internal/ctxkeys"
	"github.com/templui/accounts/internal/service"
)

const (
	invalidIDTokenDetail = "Invalid Google ID token"
	invalidTokenDetail   = "Token is invalid or expired"
)

type authHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *authHandler {
	return &authHandler{
		authService: authService,
	}
}

// GoogleLogin redirects the user to the Google consent screen
func (h *authHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	url, err := h.authService.GoogleAuthURL()
	if err != nil {
		writeError(w, r, err, invalidTokenDetail)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

type codeLoginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

// GoogleCallback completes the authorization code flow
func (h *authHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// A provider error ends the flow even if a code came along.
	if oauthErr := query.Get("error"); oauthErr != "" {
		slog.Warn("google oauth callback returned error", "error", oauthErr)
		writeDetail(w, http.StatusBadRequest, "Google OAuth error: "+oauthErr)
		return
	}

	result, err := h.authService.LoginWithCode(r.Context(), query.Get("code"))
	if err != nil {
		writeError(w, r, err, invalidTokenDetail)
		return
	}

	writeJSON(w, http.StatusOK, codeLoginResponse{
		Access:  result.Tokens.Access,
		Refresh: result.Tokens.Refresh,
		Email:   result.User.Email,
		Name:    result.User.Name,
		Created: result.Created,
	})
}

type idTokenRequest struct {
	IDToken string `json:"id_token"`
}

type tokenPairResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// GoogleIDToken logs in a client that already holds a Google ID token
func (h *authHandler) GoogleIDToken(w http.ResponseWriter, r *http.Request) {
	var req idTokenRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		slog.Debug("id token request body rejected", "error", err)
		req.IDToken = ""
	}

	result, err := h.authService.LoginWithIDToken(r.Context(), req.IDToken)
	if err != nil {
		writeError(w, r, err, invalidIDTokenDetail)
		return
	}

	writeJSON(w, http.StatusOK, tokenPairResponse{
		Access:  result.Tokens.Access,
		Refresh: result.Tokens.Refresh,
	})
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

func (h *authHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	err := decodeJSON(w, r, &req)
	if err != nil {
		req.Refresh = ""
	}

	access, err := h.authService.RefreshAccess(req.Refresh)
	if err != nil {
		writeError(w, r, err, invalidTokenDetail)
		return
	}

	writeJSON(w, http.StatusOK, refreshResponse{Access: access})
}

type meResponse struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	IsActive     bool       `json:"is_active"`
	IsStaff      bool       `json:"is_staff"`
	IsSuperuser  bool       `json:"is_superuser"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login"`
	GoogleLinked bool       `json:"google_linked"`
}

// Me returns the authenticated user. Must run behind middleware.RequireAuth.
func (h *authHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	if user == nil {
		writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		IsActive:     user.IsActive,
		IsStaff:      user.IsStaff,
		IsSuperuser:  user.IsSuperuser,
		CreatedAt:    user.CreatedAt,
		LastLogin:    user.LastLogin,
		GoogleLinked: user.HasExternalID(),
	})
}
