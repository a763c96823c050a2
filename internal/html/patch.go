package html

import (
	"strings"

	"pagepatch/internal/config"
)

// Patch returns doc with the bytes in span replaced by replacement.
// When found is false, or the span does not fit doc, doc is returned as is.
func Patch(doc string, span ElementSpan, found bool, replacement string) string {
	if !found || !fits(doc, span) {
		return doc
	}

	var b strings.Builder
	b.Grow(len(doc) - span.Len() + len(replacement))
	b.WriteString(doc[:span.Start])
	b.WriteString(replacement)
	b.WriteString(doc[span.End:])
	return b.String()
}

// Extract returns the text covered by span, verbatim
func Extract(doc string, span ElementSpan) string {
	if !fits(doc, span) {
		return ""
	}
	return doc[span.Start:span.End]
}

// ReplaceElementByID locates the element and splices replacement over it
func ReplaceElementByID(doc, container, targetID, replacement string, d config.DialectProfile) string {
	span, found := Locate(doc, container, targetID, d)
	return Patch(doc, span, found, replacement)
}

func fits(doc string, span ElementSpan) bool {
	return span.Start >= 0 && span.Start <= span.End && span.End <= len(doc)
}
