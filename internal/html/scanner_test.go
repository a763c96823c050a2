package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagepatch/internal/config"
)

var (
	htmlDialect  = config.GetDialectProfile("html")
	xhtmlDialect = config.GetDialectProfile("xhtml")
)

func collectTags(doc, name string, d config.DialectProfile) []TagOccurrence {
	var tags []TagOccurrence
	for tag := range Tags(doc, name, d) {
		tags = append(tags, tag)
	}
	return tags
}

func TestScannerClassifiesContainerTags(t *testing.T) {
	doc := `<div id="a"><p>text</p><div/><divider></divider></div >`

	tags := collectTags(doc, "div", htmlDialect)
	require.Len(t, tags, 3)

	assert.Equal(t, OpenTag, tags[0].Kind)
	assert.Equal(t, `<div id="a">`, doc[tags[0].Start:tags[0].End])
	assert.Equal(t, ` id="a"`, tags[0].AttrText)

	assert.Equal(t, EmptyTag, tags[1].Kind)
	assert.Equal(t, `<div/>`, doc[tags[1].Start:tags[1].End])
	assert.Equal(t, "", tags[1].AttrText)

	assert.Equal(t, CloseTag, tags[2].Kind)
	assert.Equal(t, `</div >`, doc[tags[2].Start:tags[2].End])
}

func TestScannerSkipsCommentsAndRawText(t *testing.T) {
	doc := `<!DOCTYPE html><!-- <div id="x"> --><?xml-stylesheet href="a"?>` +
		`<script>var s = "<div>";</script><style>div > p {}</style>` +
		`<div id="real"></div>`

	tags := collectTags(doc, "div", htmlDialect)
	require.Len(t, tags, 2)
	assert.Equal(t, `<div id="real">`, doc[tags[0].Start:tags[0].End])
	assert.Equal(t, `</div>`, doc[tags[1].Start:tags[1].End])
}

func TestScannerSkipsTextareaAndTitleContent(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"textarea", `<div id="t"><textarea></div></textarea></div>tail`},
		{"title", `<div id="t"><title>a </div> b</title></div>tail`},
		{"upper case", `<div id="t"><TEXTAREA rows="2"><div></TextArea></div>tail`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags := collectTags(tt.doc, "div", htmlDialect)
			require.Len(t, tags, 2)
			assert.Equal(t, OpenTag, tags[0].Kind)
			assert.Equal(t, CloseTag, tags[1].Kind)
			assert.Equal(t, len(tt.doc)-len("</div>tail"), tags[1].Start)
		})
	}
}

func TestScannerSelfClosingMarker(t *testing.T) {
	tests := []struct {
		tag      string
		wantKind TagKind
		wantAttr string
	}{
		{`<div/>`, EmptyTag, ""},
		{`<div />`, EmptyTag, " "},
		{`<div id="a"/>`, EmptyTag, ` id="a"`},
		{`<div id='a'/>`, EmptyTag, ` id='a'`},
		{`<div hidden/>`, EmptyTag, " hidden"},
		{`<div id="a" />`, EmptyTag, ` id="a" `},
		{`<div data-src=a/b/>`, OpenTag, " data-src=a/b/"},
		{`<div id=x/>`, OpenTag, " id=x/"},
		{`<div id=/>`, OpenTag, " id=/"},
		{`<div title="a/"/>`, EmptyTag, ` title="a/"`},
		{`<div title="a/">`, OpenTag, ` title="a/"`},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			tags := collectTags(tt.tag, "div", htmlDialect)
			require.Len(t, tags, 1)
			assert.Equal(t, tt.wantKind, tags[0].Kind)
			assert.Equal(t, tt.wantAttr, tags[0].AttrText)
		})
	}
}

func TestScannerIgnoresMarkupInsideOtherTags(t *testing.T) {
	doc := `<p title="<div id='x'>">hi</p><span data-x='</div>'></span><img alt="a>b"/>`

	assert.Empty(t, collectTags(doc, "div", htmlDialect))
}

func TestScannerTruncatedInput(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want int
	}{
		{"unterminated quote", `<div id="a`, 0},
		{"bare name", `<div`, 0},
		{"closing without bracket", `</div`, 0},
		{"lone bracket", `<`, 0},
		{"cut closing tag", `<div id="a">text</di`, 1},
		{"unterminated comment", `<div id="a"><!-- </div>`, 1},
		{"tags before truncation", `<div id="ok"></div><div class="x`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Len(t, collectTags(tt.doc, "div", htmlDialect), tt.want)
			})
		})
	}
}

func TestScannerClosingTagNeedsOnlyWhitespace(t *testing.T) {
	doc := "</div\n\t><//div></div x>"

	tags := collectTags(doc, "div", htmlDialect)
	require.Len(t, tags, 1)
	assert.Equal(t, "</div\n\t>", doc[tags[0].Start:tags[0].End])
}

func TestScannerCaseRules(t *testing.T) {
	doc := `<DIV ID="a"></Div>`

	assert.Len(t, collectTags(doc, "div", htmlDialect), 2)
	assert.Empty(t, collectTags(doc, "div", xhtmlDialect))
	assert.Len(t, collectTags(doc, "DIV", xhtmlDialect), 1)
}

func TestTagsRestartsFromZero(t *testing.T) {
	doc := `<div id="a"><div></div></div>`
	seq := Tags(doc, "div", htmlDialect)

	var first, second []TagOccurrence
	for tag := range seq {
		first = append(first, tag)
	}
	for tag := range seq {
		second = append(second, tag)
	}

	assert.Len(t, first, 4)
	assert.Equal(t, first, second)
}

func TestScannerEmptyName(t *testing.T) {
	s := NewScanner(`<div></div>`, "", htmlDialect)
	_, ok := s.Next()
	assert.False(t, ok)
	assert.Equal(t, len(`<div></div>`), s.Offset())
}
