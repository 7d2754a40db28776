package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/timeback/rosterdash/internal/auth/token"
)

// GET /login. Before showing the form, probe the auth service for an existing
// server-side session keyed by this browser's fingerprint; a hit logs the
// user straight in.
func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(r)
	fp := s.fingerprint(w, r, sess)

	if check, err := s.sso.CheckSession(r.Context(), fp, r.Host); err == nil && check.Authenticated {
		email := ""
		if check.User != nil {
			email = check.User.Email
		}
		s.completeLogin(w, r, email)
		return
	}

	flashes := sess.Flashes()
	_ = sess.Save(r, w)
	msgs := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if m, ok := f.(string); ok {
			msgs = append(msgs, m)
		}
	}
	s.render(w, http.StatusOK, "login", map[string]any{"Email": "", "Flashes": msgs})
}

// POST /login. With a password the backend auth service authenticates; with
// just an email the identity provider does, signing the user up on first
// sight.
func (s *Server) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "login", map[string]any{"Email": "", "Error": "Invalid form submission."})
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	if email == "" {
		s.render(w, http.StatusOK, "login", map[string]any{"Email": "", "Error": "Email is required."})
		return
	}

	if password != "" {
		s.ssoLogin(w, r, email, password)
		return
	}
	s.idpLogin(w, r, email)
}

func (s *Server) ssoLogin(w http.ResponseWriter, r *http.Request, email, password string) {
	user, err := s.sso.Login(r.Context(), email, password)
	if err != nil {
		s.logger.Warn("login failed", "email", email, "error", err)
		s.render(w, http.StatusOK, "login", map[string]any{
			"Email": email,
			"Error": loginErrorMessage(err),
		})
		return
	}

	sess := s.session(r)
	if fp, _ := sess.Values["fingerprint"].(string); fp != "" {
		// Best effort: a failed registration only disables auto-login.
		if err := s.sso.RegisterSession(r.Context(), fp, r.Host); err != nil {
			s.logger.Warn("session registration failed", "error", err)
		}
	}
	s.completeLogin(w, r, user.Email)
}

func (s *Server) idpLogin(w http.ResponseWriter, r *http.Request, email string) {
	res, err := s.idp.Login(r.Context(), email)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	switch {
	case res.Tokens != nil:
		s.store.Put(token.ProviderIDP, *res.Tokens)
		s.completeLogin(w, r, email)
	case res.NeedsConfirmation:
		http.Redirect(w, r, "/confirm?email="+url.QueryEscape(email), http.StatusSeeOther)
	default:
		s.render(w, http.StatusOK, "login", map[string]any{"Email": email, "Error": res.Failure})
	}
}

func (s *Server) completeLogin(w http.ResponseWriter, r *http.Request, email string) {
	sess := s.session(r)
	sess.Values["authenticated"] = true
	sess.Values["email"] = email
	_ = sess.Save(r, w)
	if s.bus != nil {
		s.bus.EmitLogin()
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GET /confirm
func (s *Server) confirmPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "confirm", map[string]any{
		"Email": r.URL.Query().Get("email"),
	})
}

// POST /confirm. A valid code confirms the account; login is then retried
// with the same email so the user lands on the dashboard in one step.
func (s *Server) confirmSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "confirm", map[string]any{"Email": "", "Error": "Invalid form submission."})
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	code := strings.TrimSpace(r.PostFormValue("code"))
	if email == "" || code == "" {
		s.render(w, http.StatusOK, "confirm", map[string]any{
			"Email": email, "Error": "Email and confirmation code are required.",
		})
		return
	}

	if err := s.idp.Confirm(r.Context(), email, code); err != nil {
		s.logger.Warn("confirmation failed", "email", email, "error", err)
		s.render(w, http.StatusOK, "confirm", map[string]any{
			"Email": email, "Error": "Confirmation failed. Check the code and try again.",
		})
		return
	}
	s.idpLogin(w, r, email)
}

// POST /logout
func (s *Server) logoutSubmit(w http.ResponseWriter, r *http.Request) {
	// Revoke the server-side session when one exists; local state clears
	// regardless of the outcome.
	if _, ok := s.store.Get(token.ProviderSSO); ok {
		if err := s.sso.Logout(r.Context(), true); err != nil {
			s.logger.Warn("logout revoke failed", "error", err)
		}
	}
	s.store.ClearAll()
	if s.bus != nil {
		s.bus.EmitLogout()
	}

	sess := s.session(r)
	delete(sess.Values, "authenticated")
	delete(sess.Values, "email")
	_ = sess.Save(r, w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func loginErrorMessage(err error) string {
	if strings.Contains(err.Error(), "invalid credentials") {
		return "Invalid email or password."
	}
	return "Login failed. Please try again."
}

// userEmail returns the signed-in email recorded in the cookie session.
func (s *Server) userEmail(r *http.Request) string {
	email, _ := s.session(r).Values["email"].(string)
	return email
}
