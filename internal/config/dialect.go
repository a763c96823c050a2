package config

import "strings"

// DialectProfile holds the name-matching rules of a markup dialect
type DialectProfile struct {
	Name string

	// FoldCase compares tag and attribute names ASCII case-insensitively
	FoldCase bool

	// RawText lists elements whose content is never scanned for tags
	RawText []string
}

// Dialects lists the dialect names accepted by GetDialectProfile
func Dialects() []string {
	return []string{"html", "xhtml"}
}

// GetDialectProfile returns the rules for a dialect, falling back to html
func GetDialectProfile(name string) DialectProfile {
	profile, ok := lookupDialect(name)
	if !ok {
		profile, _ = lookupDialect("html")
	}
	return profile
}

func lookupDialect(name string) (DialectProfile, bool) {
	switch strings.ToLower(name) {
	case "html", "html5", "":
		return DialectProfile{
			Name:     "html",
			FoldCase: true, // <DIV ID="x"> is the same element as <div id="x">
			RawText:  []string{"script", "style", "textarea", "title"},
		}, true
	case "xhtml", "xml":
		return DialectProfile{
			Name:     "xhtml",
			FoldCase: false,
			RawText:  []string{"script", "style", "textarea", "title"},
		}, true
	default:
		return DialectProfile{}, false
	}
}

// EqualName compares two tag or attribute names under the dialect's case rules
func (d DialectProfile) EqualName(a, b string) bool {
	if d.FoldCase {
		return strings.EqualFold(a, b)
	}
	return a == b
}

// NormalizeName returns the form under which a name is stored in attribute maps
func (d DialectProfile) NormalizeName(name string) string {
	if d.FoldCase {
		return strings.ToLower(name)
	}
	return name
}

// IsRawText reports whether the element's content is opaque text
func (d DialectProfile) IsRawText(name string) bool {
	for _, raw := range d.RawText {
		if d.EqualName(raw, name) {
			return true
		}
	}
	return false
}
