package kanoon

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "bail granted", "bail granted"},
		{"bold markup", "<b>bail</b> granted", "bail granted"},
		{"adjacent tags keep word boundaries", "first<br/>second", "first second"},
		{"nested tags", "<p>The <b>court</b> finds</p>", "The court finds"},
		{"whitespace collapsed", "too    many\n\nspaces", "too many spaces"},
		{"empty", "", ""},
		{"devanagari preserved", "<b>धारा</b> 438", "धारा 438"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripTags(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "lon...", Truncate("longer", 3))

	// Rune-based: multi-byte text is cut between characters, not bytes.
	assert.Equal(t, "धारा...", Truncate("धारा ४३८", 4))
}

func TestStripTagsProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.String().Draw(t, "in")
		out := StripTags(in)

		assert.True(t, utf8.ValidString(out), "output must stay valid UTF-8")
		assert.NotContains(t, out, "  ", "whitespace must be collapsed")
		assert.False(t, strings.HasPrefix(out, " "))
		assert.False(t, strings.HasSuffix(out, " "))
	})
}

func TestTruncateProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		in := rapid.String().Draw(t, "in")
		n := rapid.IntRange(0, 300).Draw(t, "n")
		out := Truncate(in, n)

		assert.True(t, utf8.ValidString(out))
		trimmed := strings.TrimSuffix(out, "...")
		assert.LessOrEqual(t, len([]rune(trimmed)), max(n, len([]rune(in))))
	})
}
