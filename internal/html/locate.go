package html

import "pagepatch/internal/config"

// Locate finds the first container element whose id attribute is exactly
// targetID and returns its whole span. Nested container elements inside the
// target are counted so that their closing tags do not end the span early.
//
// The result is false when no such element exists, when the document ends
// before the element is closed, or when container or targetID is empty.
func Locate(doc, container, targetID string, d config.DialectProfile) (ElementSpan, bool) {
	if container == "" || targetID == "" {
		return ElementSpan{}, false
	}
	return locateNext(NewScanner(doc, container, d), targetID, d)
}

// LocateAll returns every top-level element carrying targetID, in document
// order. Elements nested inside an earlier match are part of that match's
// span and are not reported separately.
func LocateAll(doc, container, targetID string, d config.DialectProfile) []ElementSpan {
	if container == "" || targetID == "" {
		return nil
	}

	var spans []ElementSpan
	s := NewScanner(doc, container, d)
	for {
		span, ok := locateNext(s, targetID, d)
		if !ok {
			return spans
		}
		spans = append(spans, span)
	}
}

func locateNext(s *Scanner, targetID string, d config.DialectProfile) (ElementSpan, bool) {
	start, depth := 0, 0

	for tag, ok := s.Next(); ok; tag, ok = s.Next() {
		if depth == 0 {
			if tag.Kind == CloseTag || !tag.HasID(targetID, d) {
				continue
			}
			if tag.Kind == EmptyTag {
				return ElementSpan{Start: tag.Start, End: tag.End}, true
			}
			start, depth = tag.Start, 1
			continue
		}

		switch tag.Kind {
		case OpenTag:
			depth++
		case CloseTag:
			depth--
			if depth == 0 {
				return ElementSpan{Start: start, End: tag.End}, true
			}
		}
	}

	return ElementSpan{}, false
}

// Balance reports the container nesting depth left open at the end of doc.
// ok is false if a closing tag appears with no matching opening tag.
func Balance(doc, container string, d config.DialectProfile) (depth int, ok bool) {
	for tag := range Tags(doc, container, d) {
		switch tag.Kind {
		case OpenTag:
			depth++
		case CloseTag:
			depth--
			if depth < 0 {
				return depth, false
			}
		}
	}
	return depth, true
}
