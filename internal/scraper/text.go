package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// ExtractLines drops script, style and noscript content and returns every
// visible text node as its own trimmed line, skipping blanks.
func ExtractLines(page string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var lines []string
	for _, n := range doc.Nodes {
		lines = collectText(n, lines)
	}
	return lines, nil
}

func collectText(n *html.Node, lines []string) []string {
	if n.Type == html.TextNode {
		for _, part := range strings.Split(n.Data, "\n") {
			if s := strings.TrimSpace(part); s != "" {
				lines = append(lines, s)
			}
		}
		return lines
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		lines = collectText(c, lines)
	}
	return lines
}
