package qti

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderChoice(t *testing.T) {
	item := ParsedItem{
		Kind:   KindChoice,
		Prompt: "Pick the igneous rock.",
		Choices: []Choice{
			{ID: "a", Label: "Basalt"},
			{ID: "b", Label: "Limestone"},
		},
	}
	html, err := Render(item, 0, "item-7")
	require.NoError(t, err)
	out := string(html)

	// All radios share one group scoped to the item.
	assert.Equal(t, 2, strings.Count(out, `name="question_item-7"`))
	assert.Contains(t, out, `value="a"`)
	assert.Contains(t, out, `value="b"`)
	// Choices keep document order.
	assert.Less(t, strings.Index(out, "Basalt"), strings.Index(out, "Limestone"))
	assert.Contains(t, out, "Pick the igneous rock.")
}

func TestRenderChoiceEscapesMarkup(t *testing.T) {
	item := ParsedItem{
		Kind:    KindChoice,
		Prompt:  `Is 1 < 2?`,
		Choices: []Choice{{ID: "a", Label: `<b>yes</b>`}},
	}
	html, err := Render(item, 0, "x")
	require.NoError(t, err)
	assert.Contains(t, string(html), "Is 1 &lt; 2?")
	assert.Contains(t, string(html), "&lt;b&gt;yes&lt;/b&gt;")
}

func TestRenderTextEntry(t *testing.T) {
	item := ParsedItem{
		Kind:        KindTextEntry,
		Prompt:      "Name the process.",
		Constraints: &Constraints{ExpectedLength: 20},
	}
	html, err := Render(item, 2, "item-9")
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, `name="question_item-9"`)
	assert.Contains(t, out, `maxlength="20"`)
	assert.Contains(t, out, "Enter your answer here...")
}

func TestRenderTextEntryWithoutConstraints(t *testing.T) {
	html, err := Render(ParsedItem{Kind: KindTextEntry, Prompt: "Free answer."}, 0, "item-3")
	require.NoError(t, err)
	assert.NotContains(t, string(html), "maxlength")
}

func TestRenderUnknownShowsQuestionNumber(t *testing.T) {
	html, err := Render(ParsedItem{Kind: KindUnknown, Prompt: "No content available for this item."}, 4, "item-5")
	require.NoError(t, err)
	out := string(html)
	assert.Contains(t, out, "Question 5 cannot be displayed")
	assert.Contains(t, out, "No content available for this item.")
}
