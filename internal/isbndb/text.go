package isbndb

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/unicode/norm"
)

// htmlTagPattern matches the tags ISBNdb commonly embeds in synopses.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// cleanText NFC-normalizes and trims an upstream string.
// Names pass through here so exact-match deduplication is byte-stable.
func cleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// cleanDescription converts HTML to Markdown when markup is present.
func cleanDescription(s string) string {
	s = cleanText(s)
	if s == "" || !containsHTML(s) {
		return s
	}

	markdown, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(markdown)
}

func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = cleanText(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
