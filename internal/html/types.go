package html

import "fmt"

// TagKind classifies a container tag found by the scanner
type TagKind int

const (
	OpenTag  TagKind = iota // <div ...>
	CloseTag                // </div>
	EmptyTag                // <div .../>
)

func (k TagKind) String() string {
	switch k {
	case OpenTag:
		return "open"
	case CloseTag:
		return "close"
	case EmptyTag:
		return "empty"
	default:
		return fmt.Sprintf("TagKind(%d)", int(k))
	}
}

// TagOccurrence is one container tag as it appears in the document.
// Start is the offset of '<' and End is one past '>'.
type TagOccurrence struct {
	Start int
	End   int
	Kind  TagKind

	// Name is the tag name exactly as written
	Name string

	// AttrText is the raw text between the tag name and '>' (or "/>")
	AttrText string
}

// Attribute is a single name/value pair from an opening tag
type Attribute struct {
	Name  string
	Value string
}

// AttributeMap holds a tag's attributes in source order
type AttributeMap []Attribute

// Get returns the value of the attribute whose name is exactly name
func (m AttributeMap) Get(name string) (string, bool) {
	for _, attr := range m {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Names returns attribute names in source order
func (m AttributeMap) Names() []string {
	names := make([]string, len(m))
	for i, attr := range m {
		names[i] = attr.Name
	}
	return names
}

// ElementSpan is the half-open byte range [Start, End) of a whole element,
// from the '<' of its opening tag through the '>' of its closing tag.
type ElementSpan struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span
func (s ElementSpan) Len() int {
	return s.End - s.Start
}

func (s ElementSpan) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}
