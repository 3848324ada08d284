package source

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractAnchors returns the href of every <a> element in document order.
// Anchors without an href, or with an empty one, are skipped. Values are
// returned exactly as written, duplicates included.
//
// When scope is a non-empty CSS selector, only anchors inside matching
// elements are returned.
func ExtractAnchors(r io.Reader, scope string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var anchors *goquery.Selection
	if scope = strings.TrimSpace(scope); scope != "" {
		anchors = doc.Find(scope).Find("a")
	} else {
		anchors = doc.Find("a")
	}

	links := make([]string, 0, anchors.Length())
	anchors.Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		links = append(links, href)
	})
	return links, nil
}

// urlPattern matches absolute http and https URLs in free text. Word
// characters are Unicode letters, digits and underscore, so
// internationalized hosts and paths are matched whole.
var urlPattern = regexp.MustCompile(`((http|https)://([\p{L}\p{N}_-]+(?:(?:\.[\p{L}\p{N}_-]+)+))([\p{L}\p{N}_.,@?^=%&:/~+#-]*[\p{L}\p{N}_@?^=%&/~+#-])?)`)

// ExtractURLs returns every absolute http or https URL in text, in order
// of appearance. Hosts must contain at least one dot.
func ExtractURLs(text string) []string {
	matches := urlPattern.FindAllString(text, -1)
	if matches == nil {
		return []string{}
	}
	return matches
}
