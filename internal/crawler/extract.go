package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ParseDocument parses UTF-8 HTML.
func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ExtractLinks returns anchor targets whose raw href starts with "http" or
// "/", in document order without duplicates. Root-relative targets are resolved
// against base.
func ExtractLinks(base *url.URL, doc *goquery.Document) []string {
	var (
		links []string
		seen  = make(map[string]struct{})
	)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		var link string
		switch {
		case strings.HasPrefix(href, "http"):
			link = href
		case strings.HasPrefix(href, "/"):
			if base == nil {
				return
			}
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			link = base.ResolveReference(ref).String()
		default:
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		seen[link] = struct{}{}
		links = append(links, link)
	})
	return links
}

// KeywordMatcher reports whether a page carries any query term in a
// <meta content> attribute.
type KeywordMatcher struct {
	query   string
	pattern *regexp.Regexp
}

// NewKeywordMatcher compiles a whitespace separated query into one
// alternation. An empty query matches every page.
func NewKeywordMatcher(query string) *KeywordMatcher {
	query = strings.TrimSpace(query)
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return &KeywordMatcher{}
	}
	for i, term := range terms {
		terms[i] = regexp.QuoteMeta(term)
	}
	return &KeywordMatcher{
		query:   query,
		pattern: regexp.MustCompile(strings.Join(terms, "|")),
	}
}

// Query returns the normalized query, empty when every page matches.
func (m *KeywordMatcher) Query() string { return m.query }

// Match reports whether doc matches the query.
func (m *KeywordMatcher) Match(doc *goquery.Document) bool {
	if m.pattern == nil {
		return true
	}
	matched := false
	doc.Find("meta[content]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content, _ := s.Attr("content")
		if m.pattern.MatchString(content) {
			matched = true
			return false
		}
		return true
	})
	return matched
}
