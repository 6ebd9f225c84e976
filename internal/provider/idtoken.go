package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/templui/accounts/internal/apperr"
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// IDTokenClaims holds the identity claims of a verified Google ID token.
type IDTokenClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	Picture       string `json:"picture"`
}

// VerifyIDToken checks signature, issuer, audience and expiry of a Google ID
// token against the current key set. Callers only ever see an invalid-token
// error; the cause is logged.
func (c *Client) VerifyIDToken(ctx context.Context, rawToken, audience string) (*IDTokenClaims, error) {
	claims, err := c.verifyIDToken(ctx, rawToken, audience)
	if err != nil {
		slog.Debug("google id token rejected", "error", err)
		return nil, apperr.InvalidToken(err)
	}
	return claims, nil
}

func (c *Client) verifyIDToken(ctx context.Context, rawToken, audience string) (*IDTokenClaims, error) {
	if audience == "" {
		return nil, errors.New("expected audience is empty")
	}

	parsed, err := jwt.ParseSigned(rawToken, []jose.SignatureAlgorithm{jose.RS256})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if len(parsed.Headers) == 0 {
		return nil, errors.New("token has no signature header")
	}

	keySet, err := c.fetchKeySet(ctx)
	if err != nil {
		return nil, err
	}

	kid := parsed.Headers[0].KeyID
	keys := keySet.Key(kid)
	if len(keys) == 0 {
		return nil, fmt.Errorf("no signing key for kid %q", kid)
	}

	var std jwt.Claims
	claims := &IDTokenClaims{}
	err = parsed.Claims(keys[0].Key, &std, claims)
	if err != nil {
		return nil, fmt.Errorf("verify signature: %w", err)
	}

	if std.Expiry == nil {
		return nil, errors.New("token has no expiry")
	}
	err = std.ValidateWithLeeway(jwt.Expected{
		AnyAudience: jwt.Audience{audience},
		Time:        c.now(),
	}, jwt.DefaultLeeway)
	if err != nil {
		return nil, fmt.Errorf("validate claims: %w", err)
	}
	if !slices.Contains(googleIssuers, std.Issuer) {
		return nil, fmt.Errorf("unexpected issuer %q", std.Issuer)
	}

	return claims, nil
}

func (c *Client) fetchKeySet(ctx context.Context) (*jose.JSONWebKeySet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.CertsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build certs request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	keySet := &jose.JSONWebKeySet{}
	err = c.doJSON(c.httpClient, req, "certs endpoint", keySet)
	if err != nil {
		slog.Warn("failed to fetch google signing keys", "error", err)
		return nil, err
	}
	return keySet, nil
}
