// Package idp talks to a Cognito-style identity provider: the x-amz-json-1.1
// actions SignUp, ConfirmSignUp and InitiateAuth, with the provider's fixed
// error taxonomy (UserNotFoundException, UserNotConfirmedException, ...).
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/timeback/rosterdash/internal/auth/token"
)

const (
	targetPrefix = "AWSCognitoIdentityProviderService."

	errUserNotFound     = "UserNotFoundException"
	errUserNotConfirmed = "UserNotConfirmedException"
	errNotAuthorized    = "NotAuthorizedException"
	errUsernameExists   = "UsernameExistsException"
)

type Client struct {
	httpc    *http.Client
	endpoint string
	clientID string

	// All dashboard accounts share one fixed password; the login form only
	// asks for an email.
	password    string
	defaultName string

	logger *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.httpc = h } }
func WithLogger(l *slog.Logger) Option     { return func(c *Client) { c.logger = l } }
func WithDefaultName(n string) Option      { return func(c *Client) { c.defaultName = n } }

func New(endpoint, clientID, password string, opts ...Option) *Client {
	c := &Client{
		httpc:       http.DefaultClient,
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		clientID:    clientID,
		password:    password,
		defaultName: "Test User",
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LoginResult has exactly one of its three outcomes set.
type LoginResult struct {
	Tokens            *token.Set
	NeedsConfirmation bool
	Failure           string
}

// Login attempts direct authentication. A user that does not exist yet is
// signed up transparently and reported as NeedsConfirmation; an existing but
// unconfirmed user likewise. Every other provider rejection surfaces verbatim
// as Failure.
func (c *Client) Login(ctx context.Context, email string) (LoginResult, error) {
	out, err := c.initiateAuth(ctx, map[string]any{
		"AuthFlow": "USER_PASSWORD_AUTH",
		"ClientId": c.clientID,
		"AuthParameters": map[string]string{
			"USERNAME": email,
			"PASSWORD": c.password,
		},
	})
	if err == nil {
		ts := out.tokenSet()
		if !ts.Valid() {
			return LoginResult{Failure: "no authentication result"}, nil
		}
		return LoginResult{Tokens: &ts}, nil
	}

	var perr *ProviderError
	switch {
	case asProviderError(err, &perr) && isUserNotFound(perr):
		c.logger.InfoContext(ctx, "new user, signing up", "email", email)
		if serr := c.signUp(ctx, email); serr != nil {
			if asProviderError(serr, &perr) {
				return LoginResult{Failure: perr.Message}, nil
			}
			return LoginResult{}, serr
		}
		return LoginResult{NeedsConfirmation: true}, nil
	case asProviderError(err, &perr) && perr.Type == errUserNotConfirmed:
		return LoginResult{NeedsConfirmation: true}, nil
	case asProviderError(err, &perr):
		return LoginResult{Failure: perr.Message}, nil
	default:
		return LoginResult{}, err
	}
}

// Confirm submits a one-time code. The provider rejecting an already confirmed
// user is remapped to success so a repeated confirm is harmless.
func (c *Client) Confirm(ctx context.Context, email, code string) error {
	_, err := c.call(ctx, "ConfirmSignUp", map[string]any{
		"ClientId":         c.clientID,
		"Username":         email,
		"ConfirmationCode": code,
	})
	var perr *ProviderError
	if asProviderError(err, &perr) &&
		perr.Type == errNotAuthorized && strings.Contains(perr.Message, "already confirmed") {
		return nil
	}
	return err
}

// Refresh exchanges a refresh token for a rotated access/id pair. It never
// returns an error: any provider failure is a false result, and the caller
// treats that as session unrecoverable.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (token.Set, bool) {
	out, err := c.initiateAuth(ctx, map[string]any{
		"AuthFlow": "REFRESH_TOKEN_AUTH",
		"ClientId": c.clientID,
		"AuthParameters": map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		c.logger.WarnContext(ctx, "token refresh failed", "error", err)
		return token.Set{}, false
	}
	ts := out.tokenSet()
	if ts.Refresh == "" {
		// Refresh responses omit the refresh token; it carries over.
		ts.Refresh = refreshToken
	}
	if !ts.Valid() {
		return token.Set{}, false
	}
	return ts, true
}

func (c *Client) signUp(ctx context.Context, email string) error {
	_, err := c.call(ctx, "SignUp", map[string]any{
		"ClientId": c.clientID,
		"Username": email,
		"Password": c.password,
		"UserAttributes": []map[string]string{
			{"Name": "email", "Value": email},
			{"Name": "name", "Value": c.defaultName},
		},
	})
	var perr *ProviderError
	if asProviderError(err, &perr) && perr.Type == errUsernameExists {
		// Already registered: fine, the caller proceeds to confirmation.
		return nil
	}
	return err
}

type authOutput struct {
	AuthenticationResult struct {
		AccessToken  string `json:"AccessToken"`
		IdToken      string `json:"IdToken"`
		RefreshToken string `json:"RefreshToken"`
	} `json:"AuthenticationResult"`
}

func (o authOutput) tokenSet() token.Set {
	return token.Set{
		Access:  o.AuthenticationResult.AccessToken,
		ID:      o.AuthenticationResult.IdToken,
		Refresh: o.AuthenticationResult.RefreshToken,
	}
}

func (c *Client) initiateAuth(ctx context.Context, body map[string]any) (authOutput, error) {
	var out authOutput
	b, err := c.call(ctx, "InitiateAuth", body)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, fmt.Errorf("idp: decode InitiateAuth response: %w", err)
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, action string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", targetPrefix+action)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("idp: %s: %w", action, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("idp: %s: read body: %w", action, err)
	}
	if resp.StatusCode >= 400 {
		return nil, decodeProviderError(action, resp.StatusCode, b)
	}
	return b, nil
}

func isUserNotFound(perr *ProviderError) bool {
	return perr.Type == errUserNotFound ||
		(perr.Type == errNotAuthorized && strings.Contains(perr.Message, "User does not exist"))
}
