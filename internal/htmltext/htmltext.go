package htmltext

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Strip extracts readable text from an HTML fragment. Post bodies arrive as
// HTML from the statuses API; prompts want plain text.
func Strip(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	text := doc.Text()
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

// Excerpt returns the first n words of the stripped text, for building
// search queries out of post bodies.
func Excerpt(fragment string, n int) string {
	words := strings.Fields(Strip(fragment))
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
