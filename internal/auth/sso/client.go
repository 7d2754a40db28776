// Package sso is the client for the backend auth service (/api/auth/*). It is
// the second token source next to the cloud identity provider: login stores
// the issued token set under the SSO provider slot, which the gateway prefers.
package sso

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/timeback/rosterdash/internal/auth/gateway"
	"github.com/timeback/rosterdash/internal/auth/token"
)

// User is the signed-in identity as reported by /api/auth/me. It is derived
// state: re-fetched whenever a token is validated, never stored.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

type Client struct {
	base  string
	gw    *gateway.Gateway
	httpc *http.Client
	store token.Store
}

func New(base string, gw *gateway.Gateway, store token.Store) *Client {
	return &Client{
		base:  strings.TrimSuffix(base, "/"),
		gw:    gw,
		httpc: http.DefaultClient,
		store: store,
	}
}

type loginResponse struct {
	Token token.Set `json:"token"`
	User  User      `json:"user"`
}

// Login authenticates against the auth service directly (there is no token to
// attach yet) and persists the issued set under the SSO provider.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var out loginResponse
	if err := c.postJSON(ctx, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out); err != nil {
		return User{}, err
	}
	if !out.Token.Valid() {
		return User{}, fmt.Errorf("sso: login returned incomplete token set")
	}
	c.store.Put(token.ProviderSSO, out.Token)
	return out.User, nil
}

// Logout revokes the server-side session and drops the local SSO tokens. The
// local clear happens even when the revoke call fails.
func (c *Client) Logout(ctx context.Context, revokeAllSessions bool) error {
	err := c.gw.PostJSON(ctx, c.base+"/api/auth/logout", map[string]bool{
		"revokeAllSessions": revokeAllSessions,
	}, nil)
	c.store.Clear(token.ProviderSSO)
	return err
}

// Me returns the current user for the attached token.
func (c *Client) Me(ctx context.Context) (User, error) {
	var out struct {
		Data struct {
			User User `json:"user"`
		} `json:"data"`
	}
	if err := c.gw.GetJSON(ctx, c.base+"/api/auth/me", &out); err != nil {
		return User{}, err
	}
	return out.Data.User, nil
}

// SessionCheck is the result of the unauthenticated session probe.
type SessionCheck struct {
	Authenticated bool       `json:"authenticated"`
	User          *User      `json:"user,omitempty"`
	Token         *token.Set `json:"token,omitempty"`
}

// CheckSession asks whether a server-side session already exists for this
// fingerprint. Unauthenticated by design; a positive result carries tokens.
func (c *Client) CheckSession(ctx context.Context, fingerprint, domain string) (SessionCheck, error) {
	var out SessionCheck
	if err := c.postJSON(ctx, "/api/auth/sessions/check", map[string]string{
		"fingerprint": fingerprint,
		"domain":      domain,
	}, &out); err != nil {
		return SessionCheck{}, err
	}
	if out.Authenticated && out.Token != nil && out.Token.Valid() {
		c.store.Put(token.ProviderSSO, *out.Token)
	}
	return out, nil
}

// RegisterSession records this client's fingerprint under the current session.
func (c *Client) RegisterSession(ctx context.Context, fingerprint, domain string) error {
	return c.gw.PostJSON(ctx, c.base+"/api/auth/sessions/register", map[string]string{
		"fingerprint": fingerprint,
		"domain":      domain,
	}, nil)
}

// postJSON is the unauthenticated path; authed calls go through the gateway.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &gateway.NetworkError{URL: c.base + path, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("sso: invalid credentials")
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sso: %s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
