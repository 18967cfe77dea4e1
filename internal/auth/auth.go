// Package auth exchanges an OAuth authorization code for an access token and resolves
// the signed-in user.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dyluth/playbox/internal/store"
	"github.com/google/uuid"
)

// DefaultAuthorizeURL is the OAuth authorize endpoint users are sent to.
const DefaultAuthorizeURL = "https://github.com/login/oauth/authorize"

// Client talks to the authenticator service and the user API.
type Client struct {
	authenticatorURL string
	apiURL           string
	client           *http.Client
}

// NewClient creates an auth client. Trailing slashes on the base URLs are ignored.
func NewClient(authenticatorURL, apiURL string) *Client {
	return &Client{
		authenticatorURL: strings.TrimRight(authenticatorURL, "/"),
		apiURL:           strings.TrimRight(apiURL, "/"),
		client:           &http.Client{Timeout: 30 * time.Second},
	}
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("authorization code cannot be empty")
	}

	var result tokenResponse
	if err := c.get(ctx, c.authenticatorURL+"/authenticate/"+url.PathEscape(code), "", &result); err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("token exchange failed: authenticator returned no token")
	}
	return result.Token, nil
}

// Profile returns the user the token belongs to.
func (c *Client) Profile(ctx context.Context, token string) (store.User, error) {
	var user store.User
	if err := c.get(ctx, c.apiURL+"/user", token, &user); err != nil {
		return store.User{}, fmt.Errorf("profile request failed: %w", err)
	}
	if user.Login == "" {
		return store.User{}, fmt.Errorf("profile request failed: no login in response")
	}
	return user, nil
}

// SignIn runs the full exchange: code to token, token to user.
func (c *Client) SignIn(ctx context.Context, code string) (store.Token, error) {
	token, err := c.Exchange(ctx, code)
	if err != nil {
		log.Printf("[ERROR] [Auth] %v", err)
		return store.Token{}, err
	}

	user, err := c.Profile(ctx, token)
	if err != nil {
		log.Printf("[ERROR] [Auth] %v", err)
		return store.Token{}, err
	}

	log.Printf("[INFO] [Auth] Signed in: login=%s", user.Login)
	return store.Token{Value: token, User: user}, nil
}

func (c *Client) get(ctx context.Context, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "token "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("invalid response: %w", err)
	}
	return nil
}

// AuthorizeURL builds the link that starts sign-in. It returns the URL and the random
// state nonce the callback must echo back.
func AuthorizeURL(base, clientID string) (string, string) {
	if base == "" {
		base = DefaultAuthorizeURL
	}
	state := uuid.New().String()

	q := url.Values{}
	q.Set("client_id", clientID)
	q.Set("scope", "gist")
	q.Set("state", state)
	return base + "?" + q.Encode(), state
}
