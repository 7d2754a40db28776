// Package api mounts the local development backend: a Cognito-style identity
// provider, the /api/auth service, OneRoster rostering endpoints and the QTI
// assessment endpoints, all over one SQL database and a blob store.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/timeback/rosterdash/internal/platform/authsvc"
	"github.com/timeback/rosterdash/internal/platform/storage"
)

type Server struct {
	db     *sql.DB
	tokens *authsvc.TokenService
	blobs  *storage.FSStore
	logger *slog.Logger
}

func NewServer(dbh *sql.DB, tokens *authsvc.TokenService, blobs *storage.FSStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{db: dbh, tokens: tokens, blobs: blobs, logger: logger}
}

func (s *Server) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Amz-Target"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Identity provider: one POST endpoint dispatched on X-Amz-Target.
	r.Post("/idp", s.idpHandler)
	r.Post("/idp/", s.idpHandler)

	// Backend auth service.
	r.Route("/api/auth", func(ar chi.Router) {
		ar.Post("/login", s.loginHandler)
		ar.Post("/sessions/check", s.sessionCheckHandler)
		ar.Group(func(pr chi.Router) {
			pr.Use(s.requireBearer)
			pr.Get("/me", s.meHandler)
			pr.Post("/logout", s.logoutHandler)
			pr.Post("/sessions/register", s.sessionRegisterHandler)
		})
	})

	// OneRoster rostering (bearer-protected).
	r.Route("/ims/oneroster/rostering/v1p2", func(rr chi.Router) {
		rr.Use(s.requireBearer)
		rr.Get("/orgs", s.listRoster("orgs"))
		rr.Get("/academicSessions", s.listRoster("academicSessions"))
		rr.Get("/courses", s.listRoster("courses"))
		rr.Get("/users", s.listRoster("users"))
		rr.Get("/classes", s.listRoster("classes"))
		rr.Get("/enrollments", s.listRoster("enrollments"))
		rr.Get("/orgs/{id}", s.getRoster("orgs", "org"))
		rr.Get("/academicSessions/{id}", s.getRoster("academicSessions", "academicSession"))
		rr.Get("/courses/{id}", s.getRoster("courses", "course"))
		rr.Get("/users/{id}", s.getRoster("users", "user"))
		rr.Get("/classes/{id}", s.getRoster("classes", "class"))
		rr.Get("/enrollments/{id}", s.getRoster("enrollments", "enrollment"))
		rr.Get("/schools/{id}/classes", s.classesForSchool)
		rr.Get("/classes/{id}/students", s.usersForClass("student"))
		rr.Get("/classes/{id}/teachers", s.usersForClass("teacher"))
		rr.Get("/users/{id}/classes", s.classesForUser)
	})

	// QTI assessment metadata (bearer-protected); payloads go via /blobs.
	r.Route("/ims/qti/v3p0", func(qr chi.Router) {
		qr.Use(s.requireBearer)
		qr.Get("/assessment-tests/{id}/test-parts", s.testPartsHandler)
		qr.Get("/assessment-items/{id}", s.itemDetailsHandler)
	})

	// Signed blob downloads: unauthenticated on purpose, the signature is the
	// credential.
	r.Get("/blobs/*", s.blobHandler)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	return r
}
