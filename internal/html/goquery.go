package html

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Fragment is a parsed view of replacement markup. It is only ever read:
// the text that gets spliced into a document is always the original string,
// never a rendering of this tree.
type Fragment struct {
	doc   *goquery.Document
	stray []string
}

// ParseFragment parses markup the way a browser would parse it inside <body>
func ParseFragment(markup string) (*Fragment, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

	nodes, err := html.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}

	f := &Fragment{}
	for _, n := range nodes {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				f.stray = append(f.stray, text)
			}
		}
		body.AppendChild(n)
	}

	f.doc = goquery.NewDocumentFromNode(body)
	return f, nil
}

// Roots returns the top-level elements of the fragment
func (f *Fragment) Roots() *goquery.Selection {
	return f.doc.Selection.Children()
}

// StrayText returns non-blank text found outside any top-level element
func (f *Fragment) StrayText() []string {
	return f.stray
}

// RootTag returns the tag name of the single top-level element, or "" if
// the fragment does not have exactly one
func (f *Fragment) RootTag() string {
	roots := f.Roots()
	if roots.Length() != 1 {
		return ""
	}
	return goquery.NodeName(roots)
}

// RootID returns the id attribute of the first top-level element
func (f *Fragment) RootID() (string, bool) {
	return f.Roots().First().Attr("id")
}

// RootHasClass reports whether the first top-level element carries class
func (f *Fragment) RootHasClass(class string) bool {
	return f.Roots().First().HasClass(class)
}

// EmptyBoxes counts elements with the given class that have neither child
// elements nor visible text
func (f *Fragment) EmptyBoxes(class string) int {
	if class == "" {
		return 0
	}

	empty := 0
	f.doc.Find("." + class).Each(func(_ int, s *goquery.Selection) {
		if s.Children().Length() == 0 && strings.TrimSpace(s.Text()) == "" {
			empty++
		}
	})
	return empty
}

// Count returns the number of elements matching a CSS selector
func (f *Fragment) Count(selector string) int {
	return f.doc.Find(selector).Length()
}

// PageIDs returns the id of every element in doc carrying class, in document
// order. It parses the whole document, so it is meant for listings, never for
// producing patched text.
func PageIDs(doc, class string) ([]string, error) {
	parsed, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var ids []string
	parsed.Find("." + class + "[id]").Each(func(_ int, s *goquery.Selection) {
		if id, _ := s.Attr("id"); id != "" {
			ids = append(ids, id)
		}
	})
	return ids, nil
}
