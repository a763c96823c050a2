package pagepatch

import (
	"fmt"

	"pagepatch/internal/html"
)

// ValidationIssue represents a problem found in replacement markup
type ValidationIssue struct {
	Type     string // "parse", "structure", "content"
	Severity string // "error", "warning"
	Message  string
	Element  string
}

// ValidateReplacement checks replacement markup before it is spliced into a
// document. It never looks at the document itself: the patch is still a
// plain splice whatever this returns.
func (p *Patcher) ValidateReplacement(targetID, replacement string) []ValidationIssue {
	var issues []ValidationIssue
	tag := p.config.ContainerTag

	fragment, err := html.ParseFragment(replacement)
	if err != nil {
		return []ValidationIssue{{
			Type:     "parse",
			Severity: "error",
			Message:  err.Error(),
		}}
	}

	// Exactly one root element of the container type
	roots := fragment.Roots().Length()
	rootTag := fragment.RootTag()
	switch {
	case roots == 0:
		issues = append(issues, ValidationIssue{
			Type:     "structure",
			Severity: "error",
			Message:  "replacement has no root element",
		})
	case roots > 1:
		issues = append(issues, ValidationIssue{
			Type:     "structure",
			Severity: "error",
			Message:  fmt.Sprintf("replacement has %d root elements, expected 1", roots),
		})
	case !p.dialect.EqualName(rootTag, tag):
		issues = append(issues, ValidationIssue{
			Type:     "structure",
			Severity: "error",
			Message:  fmt.Sprintf("replacement root is <%s>, expected <%s>", rootTag, tag),
			Element:  rootTag,
		})
	}

	for _, text := range fragment.StrayText() {
		issues = append(issues, ValidationIssue{
			Type:     "structure",
			Severity: "error",
			Message:  fmt.Sprintf("text outside the root element: %q", text),
		})
	}

	if roots == 1 {
		if id, ok := fragment.RootID(); !ok || id != targetID {
			issues = append(issues, ValidationIssue{
				Type:     "structure",
				Severity: "error",
				Message:  fmt.Sprintf("replacement root id is %q, expected %q", id, targetID),
				Element:  rootTag,
			})
		}

		if p.config.PageClass != "" && !fragment.RootHasClass(p.config.PageClass) {
			issues = append(issues, ValidationIssue{
				Type:     "structure",
				Severity: "warning",
				Message:  fmt.Sprintf("replacement root lacks class %q", p.config.PageClass),
				Element:  rootTag,
			})
		}
	}

	// Saving a page whose content box came back empty loses the page text
	if n := fragment.EmptyBoxes(p.config.MarginBoxClass); n > 0 {
		issues = append(issues, ValidationIssue{
			Type:     "content",
			Severity: "error",
			Message:  fmt.Sprintf("%d empty %q element(s) in replacement", n, p.config.MarginBoxClass),
			Element:  "." + p.config.MarginBoxClass,
		})
	}

	// The raw text must balance on its own or the splice shifts the document's nesting
	if depth, ok := html.Balance(replacement, tag, p.dialect); !ok || depth != 0 {
		issues = append(issues, ValidationIssue{
			Type:     "structure",
			Severity: "error",
			Message:  fmt.Sprintf("replacement <%s> tags do not balance", tag),
			Element:  tag,
		})
	}

	return issues
}

// HasErrors reports whether any issue has error severity
func HasErrors(issues []ValidationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == "error" {
			return true
		}
	}
	return false
}

// Summarize renders issues as a single line for logs and error messages
func Summarize(issues []ValidationIssue) string {
	switch len(issues) {
	case 0:
		return "no issues"
	case 1:
		return issues[0].Message
	default:
		return fmt.Sprintf("%s (and %d more)", issues[0].Message, len(issues)-1)
	}
}
