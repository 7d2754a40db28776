package api

import (
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// GET /ims/qti/v3p0/assessment-tests/{id}/test-parts
func (s *Server) testPartsHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var partsJSON string
	err := s.db.QueryRow(`SELECT parts_json FROM assessment_tests WHERE id=$1`, id).Scan(&partsJSON)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"testParts": json.RawMessage(partsJSON)})
}

// GET /ims/qti/v3p0/assessment-items/{id} — metadata plus a signed content
// URL. An item with no stored XML is served with an empty xmlUrl; the client
// decides how to degrade.
func (s *Server) itemDetailsHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var identifier, title, xmlKey, xmlHash string
	err := s.db.QueryRow(`SELECT identifier, title, xml_key, xml_hash FROM assessment_items WHERE id=$1`, id).
		Scan(&identifier, &title, &xmlKey, &xmlHash)
	if err == sql.ErrNoRows {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}

	xmlURL := ""
	if xmlKey != "" {
		if u, err := s.blobs.SignedURL(xmlKey); err == nil {
			xmlURL = u
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"item": map[string]string{
			"id":         id,
			"identifier": identifier,
			"title":      title,
			"xmlUrl":     xmlURL,
			"xmlHash":    xmlHash,
		},
	})
}

// GET /blobs/{key}?exp=...&sig=...
func (s *Server) blobHandler(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if key == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	q := r.URL.Query()
	if err := s.blobs.Verify(key, q.Get("exp"), q.Get("sig")); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	rc, err := s.blobs.Get(key)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.Copy(w, rc)
}
