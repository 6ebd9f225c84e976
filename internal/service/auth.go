package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/accounts/internal/apperr"
	"github.com/templui/accounts/internal/metrics"
	"github.com/templui/accounts/internal/model"
	"github.com/templui/accounts/internal/provider"
	"github.com/templui/accounts/internal/repository"
	"github.com/templui/accounts/internal/token"
	"github.com/templui/accounts/internal/validation"
)

const (
	FlowCode    = "code"
	FlowIDToken = "id_token"
)

var (
	ErrCodeRequired      = apperr.Validation("authorization code is required")
	ErrNoAccessToken     = apperr.Validation("failed to get access token")
	ErrProfileIncomplete = apperr.Validation("google user info incomplete")
	ErrIDTokenRequired   = apperr.Validation("id_token is required")
	ErrMissingClaims     = apperr.Validation("Token missing required claims")
	ErrAccountLinked     = apperr.Validation("google account is linked to another user")
	ErrRefreshRequired   = apperr.Validation("refresh token is required")
	ErrClientIDMissing   = apperr.Configuration("GOOGLE_CLIENT_ID is not configured")
	ErrInvalidEmail      = apperr.Validation("invalid email address")
)

// IdentityProvider is the slice of the Google client the auth flows need.
type IdentityProvider interface {
	ClientID() string
	AuthCodeURL() (string, error)
	ExchangeCode(ctx context.Context, code string) (*provider.TokenResponse, error)
	FetchProfile(ctx context.Context, accessToken string) (*provider.Profile, error)
	VerifyIDToken(ctx context.Context, rawToken, audience string) (*provider.IDTokenClaims, error)
}

type TokenIssuer interface {
	IssueFor(user *model.User) (token.Pair, error)
	Refresh(refreshToken string) (string, error)
}

// Identity is a provider-asserted account: normalized email, display name
// and the provider subject.
type Identity struct {
	Email   string
	Name    string
	Subject string
}

type LoginResult struct {
	User    *model.User
	Created bool
	Tokens  token.Pair
}

type AuthService struct {
	userRepository repository.UserRepository
	provider       IdentityProvider
	tokens         TokenIssuer
	metrics        *metrics.Metrics
	now            func() time.Time
}

func NewAuthService(
	userRepository repository.UserRepository,
	provider IdentityProvider,
	tokens TokenIssuer,
	metrics *metrics.Metrics,
) *AuthService {
	return &AuthService{
		userRepository: userRepository,
		provider:       provider,
		tokens:         tokens,
		metrics:        metrics,
		now:            time.Now,
	}
}

func (s *AuthService) GoogleAuthURL() (string, error) {
	return s.provider.AuthCodeURL()
}

// LoginWithCode completes the authorization code flow: exchange, profile
// lookup, find-or-create and token issuance.
func (s *AuthService) LoginWithCode(ctx context.Context, code string) (result *LoginResult, err error) {
	defer func() { s.observeLogin(FlowCode, err) }()

	if code == "" {
		return nil, ErrCodeRequired
	}

	providerToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if providerToken.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	profile, err := s.provider.FetchProfile(ctx, providerToken.AccessToken)
	if err != nil {
		return nil, err
	}

	email := validation.NormalizeEmail(profile.Email)
	subject := strings.TrimSpace(profile.Subject())
	if email == "" || subject == "" {
		return nil, ErrProfileIncomplete
	}

	return s.login(ctx, Identity{
		Email:   email,
		Name:    validation.DisplayName(email, profile.Name, profile.GivenName),
		Subject: subject,
	})
}

// LoginWithIDToken completes the direct flow for clients that already hold a
// Google ID token.
func (s *AuthService) LoginWithIDToken(ctx context.Context, rawToken string) (result *LoginResult, err error) {
	defer func() { s.observeLogin(FlowIDToken, err) }()

	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, ErrIDTokenRequired
	}

	clientID := s.provider.ClientID()
	if clientID == "" {
		return nil, ErrClientIDMissing
	}

	claims, err := s.provider.VerifyIDToken(ctx, rawToken, clientID)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInvalidToken {
			return nil, apperr.InvalidToken(err)
		}
		return nil, err
	}

	email := validation.NormalizeEmail(claims.Email)
	subject := strings.TrimSpace(claims.Subject)
	if email == "" || subject == "" {
		return nil, ErrMissingClaims
	}

	return s.login(ctx, Identity{
		Email:   email,
		Name:    validation.DisplayName(email, claims.Name, claims.GivenName),
		Subject: subject,
	})
}

// RefreshAccess exchanges a refresh token for a new access token.
func (s *AuthService) RefreshAccess(refreshToken string) (string, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return "", ErrRefreshRequired
	}

	access, err := s.tokens.Refresh(refreshToken)
	if err != nil {
		return "", apperr.InvalidToken(err)
	}
	return access, nil
}

func (s *AuthService) login(ctx context.Context, identity Identity) (*LoginResult, error) {
	user, created, err := s.FindOrCreateUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	pair, err := s.tokens.IssueFor(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}

	slog.Info("google login", "user_id", user.ID, "created", created)
	return &LoginResult{User: user, Created: created, Tokens: pair}, nil
}

// FindOrCreateUser resolves a provider identity to a local user keyed on
// email. Existing users are returned as stored, except that a missing
// external id is attached. Concurrent first logins for the same email
// converge on one row through the unique constraint.
func (s *AuthService) FindOrCreateUser(ctx context.Context, identity Identity) (*model.User, bool, error) {
	email := validation.NormalizeEmail(identity.Email)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, false, ErrInvalidEmail
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if err == nil {
		err = s.claimExternalID(ctx, user, identity.Subject)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}

	user = &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      validation.DisplayName(email, identity.Name),
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	if identity.Subject != "" {
		subject := identity.Subject
		user.ExternalID = &subject
	}

	err = s.userRepository.Create(ctx, user)
	switch {
	case err == nil:
		s.metrics.UserCreated()
		slog.Info("user created", "user_id", user.ID, "email", user.Email)
		return user, true, nil

	case errors.Is(err, repository.ErrDuplicateEmail):
		// Lost the insert race; the winner's row is authoritative.
		existing, err := s.userRepository.ByEmail(ctx, email)
		if err != nil {
			return nil, false, fmt.Errorf("failed to reload user after duplicate insert: %w", err)
		}
		err = s.claimExternalID(ctx, existing, identity.Subject)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil

	case errors.Is(err, repository.ErrDuplicateExternalID):
		// A racing login for the same identity trips external_id too.
		owner, err := s.userRepository.ByExternalID(ctx, identity.Subject)
		if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
			return nil, false, fmt.Errorf("failed to reload user after duplicate insert: %w", err)
		}
		if err == nil && owner.Email == email {
			return owner, false, nil
		}
		slog.Warn("google subject already linked to a different email", "email", email)
		return nil, false, ErrAccountLinked

	default:
		return nil, false, fmt.Errorf("failed to create user: %w", err)
	}
}

// claimExternalID attaches subject when the user has none. A differing,
// already-set external id is kept.
func (s *AuthService) claimExternalID(ctx context.Context, user *model.User, subject string) error {
	if subject == "" {
		return nil
	}
	if user.HasExternalID() {
		if *user.ExternalID != subject {
			slog.Warn("google subject differs from linked external id", "user_id", user.ID)
		}
		return nil
	}

	changed, err := s.userRepository.AttachExternalID(ctx, user.ID, subject)
	if errors.Is(err, repository.ErrDuplicateExternalID) {
		return ErrAccountLinked
	}
	if err != nil {
		return fmt.Errorf("failed to link google account: %w", err)
	}

	if !changed {
		// Someone else attached first; report what is stored.
		current, err := s.userRepository.ByID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to reload user: %w", err)
		}
		*user = *current
		return nil
	}

	user.ExternalID = &subject
	slog.Info("google account linked", "user_id", user.ID)
	return nil
}

func (s *AuthService) observeLogin(flow string, err error) {
	outcome := "success"
	if err != nil {
		outcome = apperr.KindOf(err).String()
	}
	s.metrics.ObserveLogin(flow, outcome)
}
