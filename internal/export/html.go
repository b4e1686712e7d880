package export

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// StripHTML converts a cell carrying markup into plain text with collapsed
// whitespace. Values without a tag are returned unchanged.
func StripHTML(value string) string {
	if !strings.Contains(value, "<") {
		return value
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}

	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("p, li, div, tr").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}
