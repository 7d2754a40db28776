package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/timeback/rosterdash/internal/platform/authsvc"
)

type ctxKey int

const claimsKey ctxKey = 0

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			http.Error(w, "missing bearer", http.StatusUnauthorized)
			return
		}
		claims, err := s.tokens.Parse(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			http.Error(w, "bad token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(r *http.Request) *authsvc.Claims {
	c, _ := r.Context().Value(claimsKey).(*authsvc.Claims)
	return c
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

// POST /api/auth/login {email, password}
func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	acct, err := s.account(req.Email)
	if err == sql.ErrNoRows {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	if !acct.Confirmed || bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	access, idToken, refresh, err := s.tokens.Issue(acct.identity())
	if err != nil {
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	if _, err := s.db.Exec(`INSERT INTO refresh_tokens (token, email, created_at) VALUES ($1, $2, $3)`,
		refresh, acct.Email, time.Now().Unix()); err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"token": map[string]string{
			"access_token":  access,
			"id_token":      idToken,
			"refresh_token": refresh,
		},
		"user": userPayload{ID: acct.Email, Email: acct.Email, Name: acct.Name, Role: acct.Role},
	})
}

// GET /api/auth/me
func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	c := claimsFrom(r)
	acct, err := s.account(c.Email)
	if err != nil {
		http.Error(w, "unknown user", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": map[string]any{
			"user": userPayload{ID: acct.Email, Email: acct.Email, Name: acct.Name, Role: acct.Role},
		},
	})
}

// POST /api/auth/logout {revokeAllSessions}
func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RevokeAllSessions bool `json:"revokeAllSessions"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	c := claimsFrom(r)
	if req.RevokeAllSessions {
		_, _ = s.db.Exec(`DELETE FROM refresh_tokens WHERE email=$1`, c.Email)
		_, _ = s.db.Exec(`DELETE FROM client_sessions WHERE email=$1`, c.Email)
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/auth/sessions/check {fingerprint, domain} — unauthenticated probe.
func (s *Server) sessionCheckHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprint string `json:"fingerprint"`
		Domain      string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Fingerprint == "" {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	var email string
	err := s.db.QueryRow(`SELECT email FROM client_sessions WHERE fingerprint=$1 AND domain=$2`,
		req.Fingerprint, req.Domain).Scan(&email)
	if err != nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"authenticated": false})
		return
	}
	acct, err := s.account(email)
	if err != nil {
		_ = json.NewEncoder(w).Encode(map[string]any{"authenticated": false})
		return
	}
	access, idToken, refresh, err := s.tokens.Issue(acct.identity())
	if err != nil {
		http.Error(w, "token issue failed", http.StatusInternalServerError)
		return
	}
	_, _ = s.db.Exec(`INSERT INTO refresh_tokens (token, email, created_at) VALUES ($1, $2, $3)`,
		refresh, acct.Email, time.Now().Unix())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"authenticated": true,
		"user":          userPayload{ID: acct.Email, Email: acct.Email, Name: acct.Name, Role: acct.Role},
		"token": map[string]string{
			"access_token":  access,
			"id_token":      idToken,
			"refresh_token": refresh,
		},
	})
}

// POST /api/auth/sessions/register {fingerprint, domain}
func (s *Server) sessionRegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fingerprint string `json:"fingerprint"`
		Domain      string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Fingerprint == "" {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	c := claimsFrom(r)
	_, _ = s.db.Exec(`DELETE FROM client_sessions WHERE fingerprint=$1 AND domain=$2`, req.Fingerprint, req.Domain)
	if _, err := s.db.Exec(`INSERT INTO client_sessions (fingerprint, domain, email, created_at) VALUES ($1, $2, $3, $4)`,
		req.Fingerprint, req.Domain, c.Email, time.Now().Unix()); err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
