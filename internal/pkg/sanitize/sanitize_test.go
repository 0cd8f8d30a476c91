package sanitize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestText(t *testing.T) {
	t.Run("plain text is kept", func(t *testing.T) {
		assert.Equal(t, "Great course", Text("  Great course  "))
	})

	t.Run("script elements are removed with their body", func(t *testing.T) {
		out := Text(`<script>alert("xss")</script>Great course`)
		assert.NotContains(t, out, "<script")
		assert.NotContains(t, out, "alert")
		assert.Contains(t, out, "Great course")
	})

	t.Run("tags are stripped", func(t *testing.T) {
		assert.Equal(t, "bold claim", Text("<b>bold</b> claim"))
	})

	t.Run("event handler attributes disappear", func(t *testing.T) {
		out := Text(`<img src=x onerror="alert(1)">ok`)
		assert.NotContains(t, out, "onerror")
		assert.Contains(t, out, "ok")
	})
}

func TestText_InvalidUTF8(t *testing.T) {
	out := Text("great\xff\xfe course")

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "great")
	assert.Contains(t, out, "course")
}

func TestLength(t *testing.T) {
	clean := Text("Tom & Jerry <3")
	assert.Equal(t, "Tom &amp; Jerry &lt;3", clean)
	assert.Equal(t, len("Tom & Jerry <3"), Length(clean))

	assert.Equal(t, 1000, Length(Text(strings.Repeat("&", 1000))))
	assert.Equal(t, 2, Length("zö"))
}
