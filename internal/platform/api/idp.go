package api

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/timeback/rosterdash/internal/platform/authsvc"
)

// The identity provider speaks x-amz-json-1.1: one POST endpoint, the action
// in the X-Amz-Target header, errors as {"__type": ..., "message": ...}.

const idpTargetPrefix = "AWSCognitoIdentityProviderService."

func (s *Server) idpHandler(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.Header.Get("X-Amz-Target"), idpTargetPrefix)
	switch action {
	case "SignUp":
		s.idpSignUp(w, r)
	case "ConfirmSignUp":
		s.idpConfirmSignUp(w, r)
	case "InitiateAuth":
		s.idpInitiateAuth(w, r)
	default:
		idpError(w, 400, "UnknownOperationException", "unknown operation "+action)
	}
}

func idpError(w http.ResponseWriter, status int, typ, msg string) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"__type": typ, "message": msg})
}

func idpOK(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/x-amz-json-1.1")
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) idpSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username       string `json:"Username"`
		Password       string `json:"Password"`
		UserAttributes []struct {
			Name  string `json:"Name"`
			Value string `json:"Value"`
		} `json:"UserAttributes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		idpError(w, 400, "InvalidParameterException", "bad request body")
		return
	}

	var exists bool
	_ = s.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM accounts WHERE email=$1)`, req.Username).Scan(&exists)
	if exists {
		idpError(w, 400, "UsernameExistsException", "An account with the given email already exists.")
		return
	}

	name := ""
	for _, a := range req.UserAttributes {
		if a.Name == "name" {
			name = a.Value
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		idpError(w, 500, "InternalErrorException", "hash failure")
		return
	}
	code := confirmationCode()
	if _, err := s.db.Exec(`INSERT INTO accounts (email, password_hash, name, confirmed, confirm_code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		req.Username, string(hash), name, false, code, time.Now().Unix()); err != nil {
		idpError(w, 500, "InternalErrorException", "db error")
		return
	}
	// Local stand-in for the confirmation email.
	s.logger.Info("confirmation code issued", "email", req.Username, "code", code)

	idpOK(w, map[string]any{"UserConfirmed": false, "UserSub": req.Username})
}

func (s *Server) idpConfirmSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username         string `json:"Username"`
		ConfirmationCode string `json:"ConfirmationCode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" {
		idpError(w, 400, "InvalidParameterException", "bad request body")
		return
	}

	var confirmed bool
	var code string
	err := s.db.QueryRow(`SELECT confirmed, confirm_code FROM accounts WHERE email=$1`, req.Username).
		Scan(&confirmed, &code)
	if err == sql.ErrNoRows {
		idpError(w, 400, "UserNotFoundException", "User does not exist.")
		return
	}
	if err != nil {
		idpError(w, 500, "InternalErrorException", "db error")
		return
	}
	if confirmed {
		idpError(w, 400, "NotAuthorizedException", "User is already confirmed.")
		return
	}
	if req.ConfirmationCode != code {
		idpError(w, 400, "CodeMismatchException", "Invalid verification code provided, please try again.")
		return
	}
	if _, err := s.db.Exec(`UPDATE accounts SET confirmed=$1, confirm_code='' WHERE email=$2`, true, req.Username); err != nil {
		idpError(w, 500, "InternalErrorException", "db error")
		return
	}
	idpOK(w, map[string]any{})
}

func (s *Server) idpInitiateAuth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthFlow       string            `json:"AuthFlow"`
		AuthParameters map[string]string `json:"AuthParameters"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		idpError(w, 400, "InvalidParameterException", "bad request body")
		return
	}

	switch req.AuthFlow {
	case "USER_PASSWORD_AUTH":
		s.idpPasswordAuth(w, req.AuthParameters["USERNAME"], req.AuthParameters["PASSWORD"])
	case "REFRESH_TOKEN_AUTH":
		s.idpRefreshAuth(w, req.AuthParameters["REFRESH_TOKEN"])
	default:
		idpError(w, 400, "InvalidParameterException", "unsupported auth flow "+req.AuthFlow)
	}
}

func (s *Server) idpPasswordAuth(w http.ResponseWriter, username, password string) {
	acct, err := s.account(username)
	if err == sql.ErrNoRows {
		idpError(w, 400, "UserNotFoundException", "User does not exist.")
		return
	}
	if err != nil {
		idpError(w, 500, "InternalErrorException", "db error")
		return
	}
	if !acct.Confirmed {
		idpError(w, 400, "UserNotConfirmedException", "User is not confirmed.")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)) != nil {
		idpError(w, 400, "NotAuthorizedException", "Incorrect username or password.")
		return
	}

	access, idToken, refresh, err := s.tokens.Issue(acct.identity())
	if err != nil {
		idpError(w, 500, "InternalErrorException", "token issue failed")
		return
	}
	if _, err := s.db.Exec(`INSERT INTO refresh_tokens (token, email, created_at) VALUES ($1, $2, $3)`,
		refresh, acct.Email, time.Now().Unix()); err != nil {
		idpError(w, 500, "InternalErrorException", "db error")
		return
	}
	idpOK(w, map[string]any{
		"AuthenticationResult": map[string]any{
			"AccessToken":  access,
			"IdToken":      idToken,
			"RefreshToken": refresh,
			"TokenType":    "Bearer",
		},
	})
}

func (s *Server) idpRefreshAuth(w http.ResponseWriter, refreshToken string) {
	var email string
	err := s.db.QueryRow(`SELECT email FROM refresh_tokens WHERE token=$1`, refreshToken).Scan(&email)
	if err == sql.ErrNoRows {
		idpError(w, 400, "NotAuthorizedException", "Invalid Refresh Token.")
		return
	}
	if err != nil {
		idpError(w, 500, "InternalErrorException", "db error")
		return
	}
	acct, err := s.account(email)
	if err != nil {
		idpError(w, 400, "NotAuthorizedException", "Invalid Refresh Token.")
		return
	}
	access, idToken, _, err := s.tokens.Issue(acct.identity())
	if err != nil {
		idpError(w, 500, "InternalErrorException", "token issue failed")
		return
	}
	// Refresh responses rotate access/id only; the refresh token carries over.
	idpOK(w, map[string]any{
		"AuthenticationResult": map[string]any{
			"AccessToken": access,
			"IdToken":     idToken,
			"TokenType":   "Bearer",
		},
	})
}

type account struct {
	Email        string
	PasswordHash string
	Name         string
	Role         string
	Confirmed    bool
}

func (a account) identity() authsvc.Identity {
	return authsvc.Identity{Sub: a.Email, Email: a.Email, Name: a.Name, Role: a.Role}
}

func (s *Server) account(email string) (account, error) {
	var a account
	err := s.db.QueryRow(`SELECT email, password_hash, name, role, confirmed FROM accounts WHERE email=$1`, email).
		Scan(&a.Email, &a.PasswordHash, &a.Name, &a.Role, &a.Confirmed)
	return a, err
}

func confirmationCode() string {
	b := make([]byte, 3)
	_, _ = rand.Read(b)
	n := int(b[0])<<16 | int(b[1])<<8 | int(b[2])
	return fmt.Sprintf("%06d", n%1000000)
}
