package qti

import (
	"encoding/xml"
	"io"
	"strings"
)

// The QTI standard publishes the same vocabulary under several XML
// namespaces. Content in the wild also shows up with no namespace at all, so
// element lookup tries: no namespace, any namespace, then each known
// versioned namespace explicitly, stopping at the first match.
const (
	nsQTIv2p1 = "http://www.imsglobal.org/xsd/imsqti_v2p1"
	nsQTIv2p2 = "http://www.imsglobal.org/xsd/imsqti_v2p2"
)

const anyNamespace = "*"

// node is a minimal namespace-aware element tree over encoding/xml's token
// stream; enough for prompt and interaction lookup, nothing more.
type node struct {
	space    string
	local    string
	attrs    []xml.Attr
	children []*node
	text     string
}

func parseTree(content string) (*node, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{space: t.Name.Space, local: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, errMultipleRoots
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errUnbalanced
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text += string(t)
			}
		}
	}
	if root == nil || len(stack) != 0 {
		return nil, errUnbalanced
	}
	return root, nil
}

var (
	errMultipleRoots = xml.UnmarshalError("multiple root elements")
	errUnbalanced    = xml.UnmarshalError("unbalanced document")
)

// find returns the first descendant (document order, self included) with the
// given local name in the given namespace. Space "" matches only
// un-namespaced elements; anyNamespace matches regardless.
func (n *node) find(local, space string) *node {
	if n.local == local && (space == anyNamespace || n.space == space) {
		return n
	}
	for _, c := range n.children {
		if m := c.find(local, space); m != nil {
			return m
		}
	}
	return nil
}

// findTolerant applies the namespace lookup order described above.
func (n *node) findTolerant(local string) *node {
	for _, space := range []string{"", anyNamespace, nsQTIv2p1, nsQTIv2p2} {
		if m := n.find(local, space); m != nil {
			return m
		}
	}
	return nil
}

// findAllTolerant collects every matching descendant in document order, using
// the first namespace criterion that yields any match.
func (n *node) findAllTolerant(local string) []*node {
	for _, space := range []string{"", anyNamespace, nsQTIv2p1, nsQTIv2p2} {
		var out []*node
		n.collect(local, space, &out)
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func (n *node) collect(local, space string, out *[]*node) {
	if n.local == local && (space == anyNamespace || n.space == space) {
		*out = append(*out, n)
	}
	for _, c := range n.children {
		c.collect(local, space, out)
	}
}

func (n *node) attr(local string) string {
	for _, a := range n.attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// textContent concatenates all character data beneath the node.
func (n *node) textContent() string {
	var b strings.Builder
	n.writeText(&b)
	return strings.TrimSpace(b.String())
}

func (n *node) writeText(b *strings.Builder) {
	b.WriteString(n.text)
	for _, c := range n.children {
		c.writeText(b)
	}
}
