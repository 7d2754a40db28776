package web

import (
	"net/http"
	"strings"
)

// GET /
func (s *Server) homePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgs, err := s.roster.Orgs(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	classes, err := s.roster.Classes(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	users, err := s.roster.Users(ctx, "")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "home", map[string]any{
		"Email":      s.userEmail(r),
		"OrgCount":   len(orgs),
		"ClassCount": len(classes),
		"UserCount":  len(users),
	})
}

// GET /orgs
func (s *Server) orgsPage(w http.ResponseWriter, r *http.Request) {
	orgs, err := s.roster.Orgs(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "orgs", map[string]any{"Email": s.userEmail(r), "Orgs": orgs})
}

// GET /academic-sessions
func (s *Server) academicSessionsPage(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.roster.AcademicSessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "academic_sessions", map[string]any{"Email": s.userEmail(r), "Sessions": sessions})
}

// GET /courses
func (s *Server) coursesPage(w http.ResponseWriter, r *http.Request) {
	courses, err := s.roster.Courses(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "courses", map[string]any{"Email": s.userEmail(r), "Courses": courses})
}

// GET /users?role=student|teacher
func (s *Server) usersPage(w http.ResponseWriter, r *http.Request) {
	role := normalizeRole(r.URL.Query().Get("role"))
	users, err := s.roster.Users(r.Context(), role)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "users", map[string]any{
		"Email": s.userEmail(r),
		"Users": users,
		"Role":  role,
	})
}

// GET /classes
func (s *Server) classesPage(w http.ResponseWriter, r *http.Request) {
	classes, err := s.roster.Classes(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "classes", map[string]any{"Email": s.userEmail(r), "Classes": classes})
}

// GET /enrollments
func (s *Server) enrollmentsPage(w http.ResponseWriter, r *http.Request) {
	enrollments, err := s.roster.Enrollments(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, http.StatusOK, "enrollments", map[string]any{"Email": s.userEmail(r), "Enrollments": enrollments})
}

// normalizeRole keeps the role filter to values the roster understands; an
// unknown value lists everyone.
func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "student":
		return "student"
	case "teacher":
		return "teacher"
	default:
		return ""
	}
}
