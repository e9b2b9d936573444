// Package auth exchanges GitHub OAuth authorization codes for a user profile
// and a placeholder session token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	defaultAPIURL = "https://api.github.com"

	MsgCodeRequired = "Authorization code is required"
	MsgUserFetch    = "Failed to fetch user data"
	MsgGeneric      = "An error occurred during authentication"
)

// Config holds the OAuth application settings.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides, mainly for tests and GitHub Enterprise.
	AuthURL  string
	TokenURL string
	APIURL   string

	HTTPClient *http.Client
}

// User is the projection of the GitHub profile returned to the browser.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
	Name      string `json:"name"`
}

// Result is the uniform outcome of an exchange. Failures are carried in
// Message, never as a Go error.
type Result struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}

// Exchanger performs the code exchange and profile fetch.
type Exchanger struct {
	oauth  *oauth2.Config
	apiURL string
	client *http.Client
}

// NewExchanger creates an Exchanger from cfg, filling GitHub defaults.
func NewExchanger(cfg Config) *Exchanger {
	endpoint := github.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	// GitHub accepts credentials in the body; fixing the style avoids a
	// second token request from auto-detection.
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"repo", "user"},
		},
		apiURL: apiURL,
		client: client,
	}
}

// Configured reports whether a client id is set.
func (e *Exchanger) Configured() bool {
	return e.oauth.ClientID != ""
}

// AuthCodeURL returns the provider URL the browser is redirected to.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.oauth.AuthCodeURL(state)
}

// Exchange trades code for an access token, fetches the user's profile and
// returns a fresh session token. Provider error descriptions are passed
// through verbatim.
func (e *Exchanger) Exchange(ctx context.Context, code string) Result {
	if strings.TrimSpace(code) == "" {
		return Result{Message: MsgCodeRequired}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)

	tok, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.ErrorCode != "" {
			slog.Warn("oauth exchange rejected", "error_code", rerr.ErrorCode)
			return Result{Message: rerr.ErrorDescription}
		}
		slog.Warn("oauth exchange failed", "error", err)
		return Result{Message: MsgGeneric}
	}

	user, err := e.fetchUser(ctx, tok)
	if err != nil {
		slog.Warn("fetch github user failed", "error", err)
		if errors.Is(err, errUserStatus) {
			return Result{Message: MsgUserFetch}
		}
		return Result{Message: MsgGeneric}
	}

	return Result{
		Success: true,
		Token:   NewSessionToken(),
		User:    user,
	}
}

var errUserStatus = errors.New("unexpected user status")

func (e *Exchanger) fetchUser(ctx context.Context, tok *oauth2.Token) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := e.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", errUserStatus, resp.StatusCode)
	}

	var profile struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}

	return &User{
		ID:        profile.ID,
		Username:  profile.Login,
		Email:     profile.Email,
		AvatarURL: profile.AvatarURL,
		Name:      profile.Name,
	}, nil
}

// NewSessionToken returns an opaque placeholder token: "cl_" followed by a
// ULID (millisecond timestamp plus random suffix). It is not verifiable.
func NewSessionToken() string {
	return "cl_" + ulid.Make().String()
}
