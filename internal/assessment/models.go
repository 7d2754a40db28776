// Package assessment loads a test's part/section/item hierarchy and resolves
// each item's XML payload from the content service.
package assessment

// ItemRef is one question slot within a section. Sequence drives display
// order; ids are unique within their section.
type ItemRef struct {
	ID              string `json:"id"`
	Identifier      string `json:"identifier"`
	Title           string `json:"title"`
	InteractionType string `json:"interactionType"`
	Sequence        int    `json:"sequence"`
}

// Item is an ItemRef with its resolved content. XMLContent is empty when the
// payload was missing or failed to fetch; Err then records why, and the rest
// of the hierarchy is unaffected.
type Item struct {
	ItemRef
	XMLContent string `json:"xmlContent,omitempty"`
	Err        error  `json:"-"`
}

type Section struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	Items      []Item `json:"items"`
}

type TestPart struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Sections   []Section `json:"sections"`
}

// itemDetails is the metadata envelope for a single item: where the XML body
// lives (a pre-signed, time-limited URL) and its expected SHA-256.
type itemDetails struct {
	Item struct {
		ID         string `json:"id"`
		Identifier string `json:"identifier"`
		Title      string `json:"title"`
		XMLURL     string `json:"xmlUrl"`
		XMLHash    string `json:"xmlHash"`
	} `json:"item"`
}
