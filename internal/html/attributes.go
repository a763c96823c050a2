package html

import (
	"errors"
	"fmt"
	"strings"

	"pagepatch/internal/config"
)

var (
	// ErrUnterminatedQuote is returned when a quoted value runs to the end of the tag
	ErrUnterminatedQuote = errors.New("unterminated quoted attribute value")

	// ErrMalformedAttribute is returned for '=' or a quote where a name is expected
	ErrMalformedAttribute = errors.New("malformed attribute")
)

// ParseAttributes splits the raw text of an opening tag into name/value pairs.
// Values may be double-quoted, single-quoted or bare; a name with no '=' is a
// boolean attribute with an empty value. When a name repeats, the first wins.
func ParseAttributes(text string, d config.DialectProfile) (AttributeMap, error) {
	var attrs AttributeMap
	pos := 0

	for {
		pos = skipSpace(text, pos)
		if pos >= len(text) {
			return attrs, nil
		}

		// Stray self-closing marker or slash between attributes
		if text[pos] == '/' {
			pos++
			continue
		}

		nameStart := pos
		for pos < len(text) && !isSpace(text[pos]) && !isAttrDelimiter(text[pos]) {
			pos++
		}
		if pos == nameStart {
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformedAttribute, text[pos], pos)
		}
		name := d.NormalizeName(text[nameStart:pos])

		pos = skipSpace(text, pos)
		value := ""

		if pos < len(text) && text[pos] == '=' {
			pos = skipSpace(text, pos+1)
			if pos >= len(text) {
				return nil, fmt.Errorf("%w: %s has no value", ErrMalformedAttribute, name)
			}

			switch quote := text[pos]; quote {
			case '"', '\'':
				end := strings.IndexByte(text[pos+1:], quote)
				if end < 0 {
					return nil, fmt.Errorf("%w: %s", ErrUnterminatedQuote, name)
				}
				value = text[pos+1 : pos+1+end]
				pos += end + 2
			default:
				valueStart := pos
				for pos < len(text) && !isSpace(text[pos]) {
					pos++
				}
				value = text[valueStart:pos]
			}
		}

		if _, exists := attrs.Get(name); !exists {
			attrs = append(attrs, Attribute{Name: name, Value: value})
		}
	}
}

// Attributes parses the occurrence's attribute text.
// Closing tags have no attributes.
func (t TagOccurrence) Attributes(d config.DialectProfile) (AttributeMap, error) {
	if t.Kind == CloseTag {
		return nil, nil
	}
	return ParseAttributes(t.AttrText, d)
}

// HasID reports whether the tag's id attribute is exactly id.
// A tag whose attributes cannot be parsed never matches.
func (t TagOccurrence) HasID(id string, d config.DialectProfile) bool {
	attrs, err := t.Attributes(d)
	if err != nil {
		return false
	}
	value, ok := attrs.Get("id")
	return ok && value == id
}

func isAttrDelimiter(b byte) bool {
	return b == '=' || b == '/' || b == '"' || b == '\''
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f'
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && isSpace(s[pos]) {
		pos++
	}
	return pos
}
