package html

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttributes(t *testing.T) {
	tests := []struct {
		name string
		text string
		want AttributeMap
	}{
		{"double quoted", ` id="a" class="b c"`, AttributeMap{{"id", "a"}, {"class", "b c"}}},
		{"single quoted with equals", ` class='x=y z' id=abc `, AttributeMap{{"class", "x=y z"}, {"id", "abc"}}},
		{"boolean", ` hidden id="a"`, AttributeMap{{"hidden", ""}, {"id", "a"}}},
		{"prefix decoy", ` id5="nonsense" id="234-abc"`, AttributeMap{{"id5", "nonsense"}, {"id", "234-abc"}}},
		{"folded name", ` ID="A"`, AttributeMap{{"id", "A"}}},
		{"first duplicate wins", ` id="first" id="second"`, AttributeMap{{"id", "first"}}},
		{"spaces around equals", ` id = "spaced"`, AttributeMap{{"id", "spaced"}}},
		{"trailing slash", ` data-x="1"/`, AttributeMap{{"data-x", "1"}}},
		{"no space between pairs", ` a="1"b='2'`, AttributeMap{{"a", "1"}, {"b", "2"}}},
		{"quote of other kind inside", ` title="it's" alt='say "hi"'`, AttributeMap{{"title", "it's"}, {"alt", `say "hi"`}}},
		{"empty", ``, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAttributes(tt.text, htmlDialect)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAttributesErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"unterminated double", ` id="open`, ErrUnterminatedQuote},
		{"unterminated single", ` id='x" `, ErrUnterminatedQuote},
		{"value without name", ` ="x"`, ErrMalformedAttribute},
		{"name without value", ` id=`, ErrMalformedAttribute},
		{"quote in name position", ` class="a" "b"`, ErrMalformedAttribute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAttributes(tt.text, htmlDialect)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAttributeNameExactness(t *testing.T) {
	attrs, err := ParseAttributes(` idx="t" data-id="t" id5="t" xml:id="t"`, htmlDialect)
	require.NoError(t, err)

	_, ok := attrs.Get("id")
	assert.False(t, ok)
	assert.Equal(t, []string{"idx", "data-id", "id5", "xml:id"}, attrs.Names())
}

func TestParseAttributesKeepsCaseInXHTML(t *testing.T) {
	attrs, err := ParseAttributes(` ID="upper"`, xhtmlDialect)
	require.NoError(t, err)

	_, ok := attrs.Get("id")
	assert.False(t, ok)
	value, ok := attrs.Get("ID")
	assert.True(t, ok)
	assert.Equal(t, "upper", value)
}

func TestTagOccurrenceHasID(t *testing.T) {
	open := TagOccurrence{Kind: OpenTag, AttrText: ` class="bloom-page" id="p1"`}
	assert.True(t, open.HasID("p1", htmlDialect))
	assert.False(t, open.HasID("p", htmlDialect))

	broken := TagOccurrence{Kind: OpenTag, AttrText: ` id="p1" class="oops`}
	assert.False(t, broken.HasID("p1", htmlDialect))

	closing := TagOccurrence{Kind: CloseTag}
	assert.False(t, closing.HasID("p1", htmlDialect))
}
