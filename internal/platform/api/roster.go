package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/timeback/rosterdash/internal/roster"
)

// Roster records are stored as the JSON bodies they are served as, one row
// per sourced entity, with the user role denormalized for the filter query.

// listRoster serves GET /{collection} with the OneRoster envelope
// {collectionName: [...]}. The users collection honors filter=role='x'.
func (s *Server) listRoster(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			rows *sql.Rows
			err  error
		)
		if role := filterRole(r.URL.Query().Get("filter")); collection == "users" && role != "" {
			rows, err = s.db.Query(`SELECT data FROM roster_records WHERE collection=$1 AND role=$2 ORDER BY sourced_id`,
				collection, role)
		} else {
			rows, err = s.db.Query(`SELECT data FROM roster_records WHERE collection=$1 ORDER BY sourced_id`, collection)
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		records := []json.RawMessage{}
		for rows.Next() {
			var data string
			if err := rows.Scan(&data); err == nil {
				records = append(records, json.RawMessage(data))
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{collection: records})
	}
}

// getRoster serves GET /{collection}/{id} with the singular envelope.
func (s *Server) getRoster(collection, singular string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var data string
		err := s.db.QueryRow(`SELECT data FROM roster_records WHERE collection=$1 AND sourced_id=$2`,
			collection, id).Scan(&data)
		if err == sql.ErrNoRows {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{singular: json.RawMessage(data)})
	}
}

// filterRole extracts x from the OneRoster filter expression role='x'.
func filterRole(filter string) string {
	filter = strings.TrimSpace(filter)
	if !strings.HasPrefix(filter, "role=") {
		return ""
	}
	return strings.Trim(strings.TrimPrefix(filter, "role="), "'\"")
}

// Relational lookups decode the stored JSON and filter in memory; the dataset
// is development-sized by definition.

func (s *Server) classesForSchool(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "id")
	classes, err := loadAll[roster.Class](s.db, "classes")
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	out := []roster.Class{}
	for _, c := range classes {
		if c.School.SourcedID == schoolID {
			out = append(out, c)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"classes": out})
}

func (s *Server) usersForClass(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classID := chi.URLParam(r, "id")
		enrollments, err := loadAll[roster.Enrollment](s.db, "enrollments")
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		users, err := loadAll[roster.User](s.db, "users")
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		wanted := map[string]bool{}
		for _, e := range enrollments {
			if e.Class.SourcedID == classID && e.Role == role {
				wanted[e.User.SourcedID] = true
			}
		}
		out := []roster.User{}
		for _, u := range users {
			if wanted[u.SourcedID] {
				out = append(out, u)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"users": out})
	}
}

func (s *Server) classesForUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	enrollments, err := loadAll[roster.Enrollment](s.db, "enrollments")
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	classes, err := loadAll[roster.Class](s.db, "classes")
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	wanted := map[string]bool{}
	for _, e := range enrollments {
		if e.User.SourcedID == userID {
			wanted[e.Class.SourcedID] = true
		}
	}
	out := []roster.Class{}
	for _, c := range classes {
		if wanted[c.SourcedID] {
			out = append(out, c)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"classes": out})
}

func loadAll[T any](dbh *sql.DB, collection string) ([]T, error) {
	rows, err := dbh.Query(`SELECT data FROM roster_records WHERE collection=$1 ORDER BY sourced_id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err == nil {
			out = append(out, v)
		}
	}
	return out, nil
}
