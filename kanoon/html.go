package kanoon

import (
	"strings"

	"golang.org/x/net/html"
)

// StripTags removes HTML markup from s, keeping only text content and
// collapsing runs of whitespace. Headlines and judgment bodies come back
// from the API laced with <b>, <p> and break tags.
func StripTags(s string) string {
	if !strings.ContainsRune(s, '<') && !strings.ContainsRune(s, '&') {
		return collapseWhitespace(s)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// Block-ish tags become whitespace so words don't fuse.
			b.WriteByte(' ')
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate returns at most n runes of s, appending an ellipsis when the
// input was longer. Rune-based so Devanagari text is never split mid-glyph.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
