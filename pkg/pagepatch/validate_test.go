package pagepatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateReplacement(t *testing.T) {
	tests := []struct {
		name        string
		replacement string
		wantErrors  bool
		wantTypes   []string
	}{
		{
			name:        "valid page",
			replacement: `<div class="bloom-page" id="target"><div class="marginBox"><p>text</p></div></div>`,
		},
		{
			name:        "missing page class is only a warning",
			replacement: `<div id="target"><div class="marginBox">text</div></div>`,
			wantTypes:   []string{"structure"},
		},
		{
			name:        "empty margin box",
			replacement: `<div class="bloom-page" id="target"><div class="marginBox">  </div></div>`,
			wantErrors:  true,
			wantTypes:   []string{"content"},
		},
		{
			name:        "wrong id",
			replacement: `<div class="bloom-page" id="other"><div class="marginBox">x</div></div>`,
			wantErrors:  true,
			wantTypes:   []string{"structure"},
		},
		{
			name:        "wrong root element",
			replacement: `<section class="bloom-page" id="target"><div class="marginBox">x</div></section>`,
			wantErrors:  true,
			wantTypes:   []string{"structure"},
		},
		{
			name:        "two roots",
			replacement: `<div class="bloom-page" id="target"><div class="marginBox">x</div></div><div></div>`,
			wantErrors:  true,
			wantTypes:   []string{"structure"},
		},
		{
			name:        "unbalanced",
			replacement: `<div class="bloom-page" id="target"><div class="marginBox">x</div>`,
			wantErrors:  true,
			wantTypes:   []string{"structure"},
		},
		{
			name:        "empty",
			replacement: ``,
			wantErrors:  true,
			wantTypes:   []string{"structure"},
		},
	}

	p := NewWithDefaults()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := p.ValidateReplacement("target", tt.replacement)
			assert.Equal(t, tt.wantErrors, HasErrors(issues), Summarize(issues))

			var types []string
			for _, issue := range issues {
				types = append(types, issue.Type)
			}
			if len(tt.wantTypes) == 0 {
				assert.Empty(t, issues)
			} else {
				assert.Subset(t, types, tt.wantTypes)
			}
		})
	}
}

func TestValidateReplacementStrayText(t *testing.T) {
	issues := NewWithDefaults().ValidateReplacement("target",
		`oops <div class="bloom-page" id="target"><div class="marginBox">x</div></div>`)

	assert.True(t, HasErrors(issues))
	assert.Contains(t, Summarize(issues), `"oops"`)
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, "no issues", Summarize(nil))
	assert.Equal(t, "a", Summarize([]ValidationIssue{{Message: "a"}}))
	assert.Equal(t, "a (and 1 more)", Summarize([]ValidationIssue{{Message: "a"}, {Message: "b"}}))
}
