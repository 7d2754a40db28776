package web

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/timeback/rosterdash/internal/assessment"
	"github.com/timeback/rosterdash/internal/qti"
)

type itemView struct {
	Title string
	HTML  template.HTML
}

type sectionView struct {
	Title string
	Items []itemView
}

// GET /assessment/{testID}. The hierarchy load is page-level; everything
// after that is per item, so one broken question renders as an inline panel
// among answerable neighbors.
func (s *Server) assessmentPage(w http.ResponseWriter, r *http.Request) {
	testID := chi.URLParam(r, "testID")
	parts, err := s.assess.Load(r.Context(), testID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var sections []sectionView
	number := 0
	for _, part := range parts {
		for _, sec := range part.Sections {
			sv := sectionView{Title: sec.Title}
			for _, it := range sec.Items {
				sv.Items = append(sv.Items, s.renderItem(it, number))
				number++
			}
			sections = append(sections, sv)
		}
	}

	s.render(w, http.StatusOK, "assessment", map[string]any{
		"Email":    s.userEmail(r),
		"TestID":   testID,
		"Sections": sections,
	})
}

func (s *Server) renderItem(it assessment.Item, index int) itemView {
	var parsed qti.ParsedItem
	if it.Err != nil {
		s.logger.Warn("item unavailable", "item", it.ID, "error", it.Err)
		parsed = qti.ParsedItem{Kind: qti.KindUnknown, Prompt: "Content for this question is unavailable."}
	} else {
		parsed = qti.Parse(it.XMLContent, it.InteractionType)
	}
	html, err := qti.Render(parsed, index, it.ID)
	if err != nil {
		s.logger.Error("item render failed", "item", it.ID, "error", err)
		html = template.HTML(`<div class="qti-item qti-item-error"><p>This question could not be displayed.</p></div>`)
	}
	return itemView{Title: it.Title, HTML: html}
}
