package helpers

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "Hard-wearing carpet adhesive. 15L pail.",
		StripHTML("<p>Hard-wearing <strong>carpet</strong> adhesive.</p>\n<p>15L   pail.</p>"))
	assert.Equal(t, "", StripHTML("  "))
	assert.Equal(t, "plain text", StripHTML("plain   text"))
	assert.Equal(t, "Tom & Jerry", StripHTML("Tom &amp; Jerry"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
	assert.Equal(t, "", Truncate("ab", 0))
	// rune based, never splits a multi-byte character
	assert.Equal(t, "ééé", Truncate("éééé", 3))
}

func TestDescription(t *testing.T) {
	long := "<div>" + strings.Repeat("word ", 100) + "</div>"
	desc := Description(long)
	assert.Equal(t, DescriptionLimit, utf8.RuneCountInString(desc))
	assert.True(t, strings.HasPrefix(desc, "word word"))
}

func TestResolveURL(t *testing.T) {
	assert.Equal(t, "https://kevmor.com.au/knives/12-hook.html", ResolveURL("https://kevmor.com.au/25-knives", "/knives/12-hook.html"))
	assert.Equal(t, "https://cdn.example.com/a.jpg", ResolveURL("https://kevmor.com.au/", "https://cdn.example.com/a.jpg"))
	assert.Equal(t, "", ResolveURL("https://kevmor.com.au/", "  "))
}
