package html

import (
	"iter"
	"strings"

	"pagepatch/internal/config"
)

// Scanner walks a document once, left to right, reporting the opening,
// closing and self-closing tags of a single container element. Everything
// else (text, comments, other elements, raw script/style content) is skipped.
//
// A Scanner never fails: a tag cut off by the end of the input is simply
// not reported.
type Scanner struct {
	doc     string
	name    string
	dialect config.DialectProfile
	pos     int
}

// NewScanner creates a scanner for tags named name, starting at offset 0
func NewScanner(doc, name string, d config.DialectProfile) *Scanner {
	return &Scanner{doc: doc, name: name, dialect: d}
}

// Tags returns the container tags of doc as a sequence. Each range over the
// sequence starts a fresh scan at offset 0.
func Tags(doc, name string, d config.DialectProfile) iter.Seq[TagOccurrence] {
	return func(yield func(TagOccurrence) bool) {
		s := NewScanner(doc, name, d)
		for {
			tag, ok := s.Next()
			if !ok || !yield(tag) {
				return
			}
		}
	}
}

// Offset returns the position the next call to Next resumes from
func (s *Scanner) Offset() int {
	return s.pos
}

// Next returns the next container tag, or false at the end of the document
func (s *Scanner) Next() (TagOccurrence, bool) {
	if s.name == "" {
		s.pos = len(s.doc)
	}

	for s.pos < len(s.doc) {
		lt := strings.IndexByte(s.doc[s.pos:], '<')
		if lt < 0 {
			s.pos = len(s.doc)
			break
		}
		i := s.pos + lt
		rest := s.doc[i:]

		switch {
		case strings.HasPrefix(rest, "<!--"):
			s.pos = skipPast(s.doc, i+4, "-->")
		case strings.HasPrefix(rest, "</"):
			if tag, ok := s.closingTag(i); ok {
				return tag, true
			}
		case len(rest) > 1 && (rest[1] == '!' || rest[1] == '?'):
			s.pos = skipPast(s.doc, i+2, ">")
		case len(rest) > 1 && isNameStart(rest[1]):
			if tag, ok := s.openingTag(i); ok {
				return tag, true
			}
		default:
			s.pos = i + 1
		}
	}

	return TagOccurrence{}, false
}

// closingTag handles "</" at offset i. Only "</name>" with optional
// whitespace before '>' counts as a container closing tag.
func (s *Scanner) closingTag(i int) (TagOccurrence, bool) {
	nameStart := i + 2
	nameEnd := scanName(s.doc, nameStart)
	s.pos = nameEnd
	if nameEnd == nameStart {
		s.pos = nameStart
		return TagOccurrence{}, false
	}

	name := s.doc[nameStart:nameEnd]
	if !s.dialect.EqualName(name, s.name) {
		return TagOccurrence{}, false
	}

	gt := skipSpace(s.doc, nameEnd)
	if gt >= len(s.doc) || s.doc[gt] != '>' {
		return TagOccurrence{}, false
	}

	s.pos = gt + 1
	return TagOccurrence{Start: i, End: gt + 1, Kind: CloseTag, Name: name}, true
}

// openingTag handles '<' followed by a letter at offset i
func (s *Scanner) openingTag(i int) (TagOccurrence, bool) {
	nameStart := i + 1
	nameEnd := scanName(s.doc, nameStart)
	name := s.doc[nameStart:nameEnd]

	// "<div$" is text, not a tag
	if nameEnd < len(s.doc) && !isSpace(s.doc[nameEnd]) && s.doc[nameEnd] != '>' && s.doc[nameEnd] != '/' {
		s.pos = nameEnd
		return TagOccurrence{}, false
	}

	gt := findTagEnd(s.doc, nameEnd)
	if gt < 0 {
		// Truncated tag: resume right after '<' so later tags are still seen
		s.pos = i + 1
		return TagOccurrence{}, false
	}
	end := gt + 1
	selfClosing := endsSelfClosing(s.doc[nameEnd:gt])

	if !s.dialect.EqualName(name, s.name) {
		if !selfClosing && s.dialect.IsRawText(name) {
			s.pos = s.skipRawText(end, name)
		} else {
			s.pos = end
		}
		return TagOccurrence{}, false
	}

	s.pos = end
	tag := TagOccurrence{Start: i, End: end, Kind: OpenTag, Name: name, AttrText: s.doc[nameEnd:gt]}
	if selfClosing {
		tag.Kind = EmptyTag
		tag.AttrText = s.doc[nameEnd : gt-1]
	}
	return tag, true
}

// endsSelfClosing reports whether the '/' before a tag's '>' is a
// self-closing marker. A slash that ends a bare attribute value belongs to
// the value: <div data-src=a/b/> is an opening tag.
func endsSelfClosing(attrText string) bool {
	n := len(attrText)
	if n == 0 || attrText[n-1] != '/' {
		return false
	}

	afterEquals, inBare := false, false
	for i := 0; i < n-1; i++ {
		c := attrText[i]
		switch {
		case inBare:
			inBare = !isSpace(c)
		case c == '=':
			afterEquals = true
		case isSpace(c):
		case afterEquals && (c == '"' || c == '\''):
			end := strings.IndexByte(attrText[i+1:n-1], c)
			if end < 0 {
				return false
			}
			i += end + 1
			afterEquals = false
		case afterEquals:
			inBare = true
			afterEquals = false
		}
	}
	return !inBare && !afterEquals
}

// skipRawText returns the offset of the "</name" that ends a raw text
// element, or the end of the document if it is never closed.
func (s *Scanner) skipRawText(from int, name string) int {
	pos := from
	for pos < len(s.doc) {
		j := strings.Index(s.doc[pos:], "</")
		if j < 0 {
			return len(s.doc)
		}
		j += pos
		nameEnd := scanName(s.doc, j+2)
		if s.dialect.EqualName(s.doc[j+2:nameEnd], name) {
			return j
		}
		pos = j + 2
	}
	return len(s.doc)
}

// findTagEnd returns the offset of the '>' closing the tag whose attributes
// start at pos, or -1 when the input ends first. Quotes are only honoured in
// value position, so "<div class=it's>" still ends at its '>'.
func findTagEnd(doc string, pos int) int {
	afterEquals := false
	for pos < len(doc) {
		c := doc[pos]
		switch {
		case c == '>':
			return pos
		case (c == '"' || c == '\'') && afterEquals:
			end := strings.IndexByte(doc[pos+1:], c)
			if end < 0 {
				return -1
			}
			pos += end + 2
			afterEquals = false
			continue
		case c == '=':
			afterEquals = true
		case isSpace(c):
		default:
			afterEquals = false
		}
		pos++
	}
	return -1
}

func scanName(doc string, pos int) int {
	for pos < len(doc) && config.IsNameByte(doc[pos]) {
		pos++
	}
	return pos
}

func isNameStart(b byte) bool {
	return ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z')
}

// skipPast returns the offset just after the next marker at or after pos
func skipPast(doc string, pos int, marker string) int {
	if pos > len(doc) {
		return len(doc)
	}
	j := strings.Index(doc[pos:], marker)
	if j < 0 {
		return len(doc)
	}
	return pos + j + len(marker)
}
