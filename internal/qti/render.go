package qti

import (
	"fmt"
	"html/template"
	"strings"
)

// Rendering is stateless: each call turns one ParsedItem into markup,
// independent of every other item. Radio groups are namespaced by item id so
// controls from different items never collide.

var choiceTmpl = template.Must(template.New("choice").Parse(`<div class="qti-item">
  <p class="qti-prompt">{{.Prompt}}</p>
  <div class="qti-choices">
{{- range .Choices}}
    <label class="qti-choice"><input type="radio" name="{{$.Group}}" value="{{.ID}}"> <span>{{.Label}}</span></label>
{{- end}}
  </div>
</div>`))

var textEntryTmpl = template.Must(template.New("textEntry").Parse(`<div class="qti-item">
  <p class="qti-prompt">{{.Prompt}}</p>
  <input type="text" name="{{.Group}}" class="qti-text-entry" placeholder="Enter your answer here..."{{if .MaxLen}} maxlength="{{.MaxLen}}" size="{{.MaxLen}}"{{end}}>
</div>`))

var unknownTmpl = template.Must(template.New("unknown").Parse(`<div class="qti-item qti-item-error">
  <p class="qti-error-title">Question {{.Number}} cannot be displayed</p>
  <p class="qti-error-detail">{{.Prompt}}</p>
</div>`))

// Render produces the answerable markup for one item. itemIndex is the
// zero-based position used only for the visible question number.
func Render(item ParsedItem, itemIndex int, itemID string) (template.HTML, error) {
	group := "question_" + itemID
	var b strings.Builder
	var err error
	switch item.Kind {
	case KindChoice:
		err = choiceTmpl.Execute(&b, struct {
			Prompt  string
			Choices []Choice
			Group   string
		}{item.Prompt, item.Choices, group})
	case KindTextEntry:
		maxLen := 0
		if item.Constraints != nil {
			maxLen = item.Constraints.ExpectedLength
		}
		err = textEntryTmpl.Execute(&b, struct {
			Prompt string
			Group  string
			MaxLen int
		}{item.Prompt, group, maxLen})
	default:
		err = unknownTmpl.Execute(&b, struct {
			Number int
			Prompt string
		}{itemIndex + 1, item.Prompt})
	}
	if err != nil {
		return "", fmt.Errorf("qti: render item %s: %w", itemID, err)
	}
	return template.HTML(b.String()), nil
}
