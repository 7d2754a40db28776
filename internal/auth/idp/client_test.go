package idp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timeback/rosterdash/internal/auth/token"
)

// fakeProvider scripts x-amz-json-1.1 responses per action and records the
// order actions arrive in.
type fakeProvider struct {
	t        *testing.T
	actions  []string
	handlers map[string]http.HandlerFunc
}

func newFakeProvider(t *testing.T) (*fakeProvider, *Client) {
	t.Helper()
	fp := &fakeProvider{t: t, handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		action := strings.TrimPrefix(r.Header.Get("X-Amz-Target"), "AWSCognitoIdentityProviderService.")
		fp.actions = append(fp.actions, action)
		h, ok := fp.handlers[action]
		if !ok {
			t.Fatalf("unexpected action %q", action)
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return fp, New(srv.URL, "client-1", "fixed-password")
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, typ, msg string) {
	respondJSON(w, 400, map[string]string{"__type": typ, "message": msg})
}

func respondTokens(w http.ResponseWriter, access, id, refresh string) {
	respondJSON(w, 200, map[string]any{
		"AuthenticationResult": map[string]string{
			"AccessToken":  access,
			"IdToken":      id,
			"RefreshToken": refresh,
		},
	})
}

func TestLoginSuccess(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AuthFlow       string            `json:"AuthFlow"`
			AuthParameters map[string]string `json:"AuthParameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "USER_PASSWORD_AUTH", body.AuthFlow)
		assert.Equal(t, "kid@example.com", body.AuthParameters["USERNAME"])
		assert.Equal(t, "fixed-password", body.AuthParameters["PASSWORD"])
		respondTokens(w, "acc", "id", "ref")
	}

	res, err := c.Login(context.Background(), "kid@example.com")
	require.NoError(t, err)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, token.Set{Access: "acc", ID: "id", Refresh: "ref"}, *res.Tokens)
	assert.False(t, res.NeedsConfirmation)
	assert.Empty(t, res.Failure)
}

func TestLoginSignsUpUnknownUser(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "UserNotFoundException", "User does not exist.")
	}
	fp.handlers["SignUp"] = func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username       string `json:"Username"`
			UserAttributes []struct{ Name, Value string }
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "new@example.com", body.Username)
		respondJSON(w, 200, map[string]any{"UserConfirmed": false})
	}

	res, err := c.Login(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, res.NeedsConfirmation)
	assert.Nil(t, res.Tokens)
	assert.Equal(t, []string{"InitiateAuth", "SignUp"}, fp.actions)
}

func TestLoginNotAuthorizedUserDoesNotExistAlsoSignsUp(t *testing.T) {
	// Some provider pools report unknown users as NotAuthorized with this
	// message instead of UserNotFoundException.
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "NotAuthorizedException", "User does not exist.")
	}
	fp.handlers["SignUp"] = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, 200, map[string]any{"UserConfirmed": false})
	}

	res, err := c.Login(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, res.NeedsConfirmation)
}

func TestLoginUnconfirmedUserNeedsConfirmation(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "UserNotConfirmedException", "User is not confirmed.")
	}

	res, err := c.Login(context.Background(), "pending@example.com")
	require.NoError(t, err)
	assert.True(t, res.NeedsConfirmation)
	assert.Equal(t, []string{"InitiateAuth"}, fp.actions)
}

func TestLoginSignUpRaceLostIsStillConfirmable(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "UserNotFoundException", "User does not exist.")
	}
	fp.handlers["SignUp"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "UsernameExistsException", "An account with the given email already exists.")
	}

	res, err := c.Login(context.Background(), "racer@example.com")
	require.NoError(t, err)
	assert.True(t, res.NeedsConfirmation)
}

func TestLoginFailureSurfacesProviderMessage(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "NotAuthorizedException", "Incorrect username or password.")
	}

	res, err := c.Login(context.Background(), "locked@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Incorrect username or password.", res.Failure)
	assert.Nil(t, res.Tokens)
	assert.False(t, res.NeedsConfirmation)
}

func TestConfirmSuccess(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["ConfirmSignUp"] = func(w http.ResponseWriter, r *http.Request) {
		var body struct{ Username, ConfirmationCode string }
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "123456", body.ConfirmationCode)
		respondJSON(w, 200, map[string]any{})
	}
	require.NoError(t, c.Confirm(context.Background(), "kid@example.com", "123456"))
}

func TestConfirmAlreadyConfirmedIsSuccess(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["ConfirmSignUp"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "NotAuthorizedException", "User cannot be confirmed. Current status is CONFIRMED, user is already confirmed.")
	}
	require.NoError(t, c.Confirm(context.Background(), "kid@example.com", "123456"))
}

func TestConfirmBadCode(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["ConfirmSignUp"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "CodeMismatchException", "Invalid verification code provided, please try again.")
	}

	err := c.Confirm(context.Background(), "kid@example.com", "000000")
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "CodeMismatchException", perr.Type)
}

func TestRefreshCarriesRefreshTokenOver(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			AuthFlow       string            `json:"AuthFlow"`
			AuthParameters map[string]string `json:"AuthParameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "REFRESH_TOKEN_AUTH", body.AuthFlow)
		assert.Equal(t, "old-refresh", body.AuthParameters["REFRESH_TOKEN"])
		// Refresh responses omit the refresh token.
		respondTokens(w, "acc2", "id2", "")
	}

	set, ok := c.Refresh(context.Background(), "old-refresh")
	require.True(t, ok)
	assert.Equal(t, token.Set{Access: "acc2", ID: "id2", Refresh: "old-refresh"}, set)
}

func TestRefreshFailureIsFalseNotError(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "NotAuthorizedException", "Invalid Refresh Token.")
	}

	_, ok := c.Refresh(context.Background(), "stale")
	assert.False(t, ok)
}

func TestProviderErrorStripsNamespacePrefix(t *testing.T) {
	fp, c := newFakeProvider(t)
	fp.handlers["InitiateAuth"] = func(w http.ResponseWriter, r *http.Request) {
		respondError(w, "#UserNotFoundException", "User does not exist.")
	}
	fp.handlers["SignUp"] = func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, 200, map[string]any{"UserConfirmed": false})
	}

	res, err := c.Login(context.Background(), "ns@example.com")
	require.NoError(t, err)
	assert.True(t, res.NeedsConfirmation)
}
