// Package provider talks to Google's OAuth2 and OpenID endpoints: code
// exchange, userinfo lookup, and ID token verification.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/templui/accounts/internal/apperr"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	GoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	GoogleCertsURL    = "https://www.googleapis.com/oauth2/v3/certs"

	defaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
)

var Scopes = []string{"openid", "email", "profile"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Endpoints default to Google's.
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	CertsURL    string

	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.AuthURL == "" {
		cfg.AuthURL = google.Endpoint.AuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = google.Endpoint.TokenURL
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = GoogleUserInfoURL
	}
	if cfg.CertsURL == "" {
		cfg.CertsURL = GoogleCertsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, httpClient: httpClient, now: time.Now}
}

func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

// TokenResponse is the token endpoint payload. AccessToken may be empty;
// callers decide what that means.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`
}

// SubjectID accepts the provider id as either a JSON string or number.
type SubjectID string

func (s *SubjectID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = SubjectID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("subject id must be a string or number: %w", err)
	}
	*s = SubjectID(num.String())
	return nil
}

// Profile is the userinfo payload. The v2 endpoint uses "id", OpenID userinfo uses "sub".
type Profile struct {
	ID            SubjectID `json:"id"`
	Sub           SubjectID `json:"sub"`
	Email         string    `json:"email"`
	VerifiedEmail bool      `json:"verified_email"`
	Name          string    `json:"name"`
	GivenName     string    `json:"given_name"`
	Picture       string    `json:"picture"`
}

func (p *Profile) Subject() string {
	if p.ID != "" {
		return string(p.ID)
	}
	return string(p.Sub)
}

func (c *Client) oauthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		RedirectURL:  c.cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.cfg.AuthURL,
			TokenURL:  c.cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the consent screen URL. The flow keeps no local state,
// so no state parameter is attached.
func (c *Client) AuthCodeURL() (string, error) {
	if c.cfg.ClientID == "" {
		return "", apperr.Configuration("GOOGLE_CLIENT_ID is not configured")
	}
	if c.cfg.RedirectURI == "" {
		return "", apperr.Configuration("GOOGLE_REDIRECT_URI is not configured")
	}
	return c.oauthConfig().AuthCodeURL("",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	), nil
}

func (c *Client) requireCodeFlowConfig() error {
	switch {
	case c.cfg.ClientID == "":
		return apperr.Configuration("GOOGLE_CLIENT_ID is not configured")
	case c.cfg.ClientSecret == "":
		return apperr.Configuration("GOOGLE_CLIENT_SECRET is not configured")
	case c.cfg.RedirectURI == "":
		return apperr.Configuration("GOOGLE_REDIRECT_URI is not configured")
	}
	return nil
}

// ExchangeCode trades an authorization code for provider tokens.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	err := c.requireCodeFlowConfig()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("redirect_uri", c.cfg.RedirectURI)
	form.Set("grant_type", "authorization_code")

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	token := &TokenResponse{}
	err = c.doJSON(c.httpClient, req, "token endpoint", token)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// FetchProfile loads the userinfo profile for a provider access token.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	profile := &Profile{}
	err = c.doJSON(client, req, "userinfo endpoint", profile)
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// doJSON sends req and decodes a 2xx JSON body into out. Every failure is
// a provider communication error.
func (c *Client) doJSON(client *http.Client, req *http.Request, what string, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperr.ProviderCommunication(0, err, "%s timed out", what)
		}
		return apperr.ProviderCommunication(0, err, "%s unreachable", what)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return apperr.ProviderCommunication(resp.StatusCode, err, "%s response could not be read", what)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.ProviderCommunication(resp.StatusCode, nil, "%s returned status %d", what, resp.StatusCode)
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return apperr.ProviderCommunication(resp.StatusCode, err, "%s returned an invalid response", what)
	}
	return nil
}
