// Package qti parses assessment item XML into a small typed model and renders
// it as answerable markup. Only choice and textEntry interactions are
// understood; everything else degrades to a diagnostic placeholder rather
// than an error.
package qti

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

type Kind string

const (
	KindChoice    Kind = "choice"
	KindTextEntry Kind = "textEntry"
	KindUnknown   Kind = "unknown"
)

type Choice struct {
	ID    string
	Label string
}

// Constraints are the input hints a textEntry interaction may declare.
type Constraints struct {
	ExpectedLength int
}

// ParsedItem is a pure function of (xmlContent, interactionType). For
// KindUnknown the prompt carries the diagnostic to show in place of a
// broken control.
type ParsedItem struct {
	Prompt      string
	Kind        Kind
	Choices     []Choice
	Constraints *Constraints
}

const excerptLimit = 300

// Parse never fails: blank content, malformed markup, and unsupported
// interaction types all come back as KindUnknown with a non-empty prompt.
func Parse(xmlContent, interactionType string) ParsedItem {
	if strings.TrimSpace(xmlContent) == "" {
		return ParsedItem{Kind: KindUnknown, Prompt: "No content available for this item."}
	}

	root, err := parseTree(xmlContent)
	if err != nil {
		return ParsedItem{Kind: KindUnknown, Prompt: "Item XML could not be parsed: " + excerpt(xmlContent)}
	}

	prompt := extractPrompt(root)

	switch interactionType {
	case "choice":
		return parseChoice(root, prompt)
	case "textEntry":
		return parseTextEntry(root, prompt)
	default:
		return ParsedItem{Kind: KindUnknown, Prompt: "Unsupported interaction type " + strconv.Quote(interactionType) + "."}
	}
}

func extractPrompt(root *node) string {
	body := root.findTolerant("itemBody")
	if body == nil {
		return "Question content not found."
	}
	if p := body.findTolerant("p"); p != nil {
		if s := p.textContent(); s != "" {
			return s
		}
	}
	if d := body.findTolerant("div"); d != nil {
		if s := d.textContent(); s != "" {
			return s
		}
	}
	return "Question content not found."
}

func parseChoice(root *node, prompt string) ParsedItem {
	interaction := root.findTolerant("choiceInteraction")
	if interaction == nil {
		return ParsedItem{Kind: KindUnknown, Prompt: "No choice interaction found in item content."}
	}
	nodes := interaction.findAllTolerant("simpleChoice")
	if len(nodes) == 0 {
		return ParsedItem{Kind: KindUnknown, Prompt: "Choice interaction has no choices."}
	}
	choices := make([]Choice, 0, len(nodes))
	for i, n := range nodes {
		id := n.attr("identifier")
		if id == "" {
			id = "choice_" + strconv.Itoa(i)
		}
		choices = append(choices, Choice{ID: id, Label: n.textContent()})
	}
	return ParsedItem{Kind: KindChoice, Prompt: prompt, Choices: choices}
}

func parseTextEntry(root *node, prompt string) ParsedItem {
	item := ParsedItem{Kind: KindTextEntry, Prompt: prompt}
	if interaction := root.findTolerant("textEntryInteraction"); interaction != nil {
		if v := interaction.attr("expectedLength"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				item.Constraints = &Constraints{ExpectedLength: n}
			}
		}
	}
	return item
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= excerptLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:excerptLimit]) + "..."
}
