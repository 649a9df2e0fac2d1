package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	vhttp "vidflow/http"
)

// TokenStore persists the access token between runs.
type TokenStore interface {
	Save(token string) error
	Clear() error
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Auth logs in against the backend and keeps the token in a TokenStore.
type Auth struct {
	http   *vhttp.Client
	tokens TokenStore
}

// NewAuth creates an Auth. tokens may be nil, in which case Login only
// returns the token.
func NewAuth(hc *vhttp.Client, tokens TokenStore) *Auth {
	return &Auth{http: hc, tokens: tokens}
}

// Login exchanges credentials for an access token and stores it.
func (a *Auth) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := a.post(ctx, "/login", username, password)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", fmt.Errorf("login: decode: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("login: response carries no access token")
	}
	if a.tokens != nil {
		if err := a.tokens.Save(out.AccessToken); err != nil {
			return "", fmt.Errorf("login: %w", err)
		}
	}
	return out.AccessToken, nil
}

// Register creates a user account.
func (a *Auth) Register(ctx context.Context, username, password string) error {
	if _, err := a.post(ctx, "/register", username, password); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

// Profile is the account the current token belongs to.
type Profile struct {
	ID       int64  `json:"id,omitempty"`
	Username string `json:"username"`
}

// Profile reads the account behind the current token.
func (a *Auth) Profile(ctx context.Context) (*Profile, error) {
	resp, err := a.http.Get(ctx, "/protected")
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	var out Profile
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	return &out, nil
}

// Logout forgets the stored token.
func (a *Auth) Logout() error {
	if a.tokens == nil {
		return nil
	}
	return a.tokens.Clear()
}

func (a *Auth) post(ctx context.Context, path, username, password string) (*vhttp.Response, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}
	body, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	return a.http.DoOnce(ctx, http.MethodPost, path, body, nil)
}
