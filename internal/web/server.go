// Package web serves the dashboard UI: server-rendered pages over the roster,
// auth and assessment clients. Browser state is a signed cookie session; the
// actual credentials live in the token store and never reach the browser.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/timeback/rosterdash/internal/assessment"
	"github.com/timeback/rosterdash/internal/auth/events"
	"github.com/timeback/rosterdash/internal/auth/gateway"
	"github.com/timeback/rosterdash/internal/auth/idp"
	"github.com/timeback/rosterdash/internal/auth/sso"
	"github.com/timeback/rosterdash/internal/auth/token"
	"github.com/timeback/rosterdash/internal/roster"
)

type Server struct {
	sso    *sso.Client
	idp    *idp.Client
	roster *roster.Client
	assess *assessment.Fetcher
	store  token.Store
	bus    *events.Broadcaster

	cookies    *sessions.CookieStore
	cookieName string
	logger     *slog.Logger
}

type Options struct {
	SSO        *sso.Client
	IDP        *idp.Client
	Roster     *roster.Client
	Assessment *assessment.Fetcher
	Store      token.Store
	Bus        *events.Broadcaster

	CookieSecret string
	CookieName   string
	Logger       *slog.Logger
}

func NewServer(o Options) *Server {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	cookies := sessions.NewCookieStore([]byte(o.CookieSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((12 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	s := &Server{
		sso:        o.SSO,
		idp:        o.IDP,
		roster:     o.Roster,
		assess:     o.Assessment,
		store:      o.Store,
		bus:        o.Bus,
		cookies:    cookies,
		cookieName: o.CookieName,
		logger:     o.Logger,
	}
	if s.bus != nil {
		s.bus.OnLogout(func() { s.logger.Info("auth session ended") })
		s.bus.OnLogin(func() { s.logger.Info("auth session established") })
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	r.Get("/login", s.loginPage)
	r.Post("/login", s.loginSubmit)
	r.Get("/confirm", s.confirmPage)
	r.Post("/confirm", s.confirmSubmit)

	r.Group(func(pr chi.Router) {
		pr.Use(s.requireSession)
		pr.Get("/", s.homePage)
		pr.Get("/orgs", s.orgsPage)
		pr.Get("/academic-sessions", s.academicSessionsPage)
		pr.Get("/courses", s.coursesPage)
		pr.Get("/users", s.usersPage)
		pr.Get("/classes", s.classesPage)
		pr.Get("/enrollments", s.enrollmentsPage)
		pr.Get("/assessment/{testID}", s.assessmentPage)
		pr.Post("/logout", s.logoutSubmit)
	})
	return r
}

// requireSession gates the dashboard pages. A request passes only when the
// cookie session says logged-in AND the token store still holds a usable set;
// a gateway teardown invalidates the cookie on its next use.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := s.session(r)
		authed, _ := sess.Values["authenticated"].(bool)
		if !authed || !s.hasToken() {
			s.toLogin(w, r, "Please log in to continue.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) hasToken() bool {
	for _, p := range token.Preference {
		if _, ok := s.store.Get(p); ok {
			return true
		}
	}
	return false
}

func (s *Server) session(r *http.Request) *sessions.Session {
	sess, _ := s.cookies.Get(r, s.cookieName)
	return sess
}

// fingerprint returns the stable per-browser id used for server-side session
// lookup, minting one on first sight.
func (s *Server) fingerprint(w http.ResponseWriter, r *http.Request, sess *sessions.Session) string {
	fp, _ := sess.Values["fingerprint"].(string)
	if fp == "" {
		fp = uuid.NewString()
		sess.Values["fingerprint"] = fp
		_ = sess.Save(r, w)
	}
	return fp
}

func (s *Server) toLogin(w http.ResponseWriter, r *http.Request, flash string) {
	sess := s.session(r)
	delete(sess.Values, "authenticated")
	if flash != "" {
		sess.AddFlash(flash)
	}
	_ = sess.Save(r, w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// fail routes an upstream error to the right surface: auth failures restart
// the login flow, network failures get a connectivity page, the rest a
// generic error page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	var nerr *gateway.NetworkError
	switch {
	case errors.Is(err, gateway.ErrAuthRequired):
		s.toLogin(w, r, "Please log in to continue.")
	case errors.Is(err, gateway.ErrSessionExpired):
		s.toLogin(w, r, "Your session has expired. Please log in again.")
	case errors.As(err, &nerr):
		s.logger.Warn("upstream unreachable", "url", nerr.URL, "error", nerr.Err)
		s.renderError(w, r, http.StatusBadGateway, "Connection problem",
			"The service could not be reached. Check your connection and try again.")
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong",
			"The page could not be loaded. Please try again.")
	}
}
