package pagepatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepatch/internal/config"
)

const replacementPage = `<div class="bloom-page" id="target"><div class="marginBox"><p>new</p></div></div>`

func TestReplaceElementByIDRubbish(t *testing.T) {
	got := ReplaceElementByID("rubbish", "div", "whatever", replacementPage)
	assert.Equal(t, "rubbish", got)
}

func TestReplaceElementByIDPriorSiblingAndNestedTarget(t *testing.T) {
	prior := `<div class="bloom-page" id="first"><div class="marginBox">keep me</div></div>`
	target := `<div class="bloom-page" id="target"><div class="marginBox">` +
		`<div class="bloom-translationGroup" data-hint="bloom-page"><div lang="en">old</div></div>` +
		`</div></div>`

	got := ReplaceElementByID(prior+target, "div", "target", replacementPage)
	assert.Equal(t, prior+replacementPage, got)
}

func TestReplaceElementByIDPrefixDecoy(t *testing.T) {
	target := `<div id5="nonsense" class="bloom-page" id="234-abc"><div class="marginBox">old</div></div>`
	sibling := `<div class="bloom-page" id="next"><div class="marginBox">untouched</div></div>`
	replacement := `<div class="bloom-page" id="234-abc">new</div>`

	got := ReplaceElementByID(target+sibling, "div", "234-abc", replacement)
	assert.Equal(t, replacement+sibling, got)

	assert.Equal(t, target+sibling, ReplaceElementByID(target+sibling, "div", "nonsense", replacement))
}

func TestReplaceElementByIDLastElement(t *testing.T) {
	prefix := `<html><body><div class="bloom-page" id="a"></div>`
	target := `<div class="bloom-page" id="target"><div class="marginBox">old</div></div>`
	suffix := "\n  </body>\n</html>\n"

	got := ReplaceElementByID(prefix+target+suffix, "div", "target", replacementPage)
	assert.Equal(t, prefix+replacementPage+suffix, got)
}

func TestPatcherPatch(t *testing.T) {
	p := NewWithDefaults()
	doc := `<div id="a"></div><div id="target">old</div><div id="target">dup</div>`

	result, err := p.Patch(doc, "target", replacementPage)
	require.NoError(t, err)

	assert.True(t, result.Found)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, len(`<div id="a"></div>`), result.Span.Start)
	assert.Equal(t, `<div id="a"></div>`+replacementPage+`<div id="target">dup</div>`, result.Document)
	assert.Equal(t, len(doc), result.Stats.DocumentBytes)
	assert.Equal(t, len(`<div id="target">old</div>`), result.Stats.ReplacedBytes)
	assert.Equal(t, len(replacementPage), result.Stats.ReplacementBytes)
}

func TestPatcherPatchNotFound(t *testing.T) {
	p := NewWithDefaults()
	doc := `<div id="a"><div id="b">text</div></div>`

	result, err := p.Patch(doc, "c", replacementPage)
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, doc, result.Document)
	assert.Zero(t, result.Duplicates)
}

func TestPatcherRequiresUTF8(t *testing.T) {
	doc := "<div id=\"a\">\xff</div>"

	_, err := NewWithDefaults().Patch(doc, "a", "x")
	assert.ErrorIs(t, err, ErrInvalidEncoding)

	cfg := config.Default()
	cfg.RequireUTF8 = false
	got, err := New(cfg).PatchString(doc, "a", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}

func TestPatcherCustomContainer(t *testing.T) {
	cfg := config.Default()
	cfg.ContainerTag = "section"
	p := New(cfg)

	doc := `<div id="s"></div><section id="s"><section>inner</section></section>`
	got, err := p.PatchString(doc, "s", "<section id=\"s\"/>")
	require.NoError(t, err)
	assert.Equal(t, `<div id="s"></div><section id="s"/>`, got)

	assert.Equal(t, got, ReplaceElementByIDWithConfig(doc, "s", "<section id=\"s\"/>", cfg))
}

func TestPatcherExtract(t *testing.T) {
	p := NewWithDefaults()
	page := `<div class="bloom-page" id="p2"><div class="marginBox">two</div></div>`
	doc := `<div id="p1"></div>` + page

	got, ok := p.Extract(doc, "p2")
	require.True(t, ok)
	assert.Equal(t, page, got)

	_, ok = p.Extract(doc, "p3")
	assert.False(t, ok)
}

func TestPatcherLocate(t *testing.T) {
	p := NewWithDefaults()
	doc := strings.Repeat(`<div id="x"></div>`, 3)

	assert.Len(t, p.Locate(doc, "x"), 3)
	assert.Empty(t, p.Locate(doc, "y"))
}
