package ieee

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-harvest/internal/crawl"
)

// Listing extracts document numbers from a results page.
type Listing struct {
	Selector string
}

// Identifiers waits for the result items to render and returns their id
// attributes in page order.
func (l Listing) Identifiers(ctx context.Context, s crawl.Session) ([]string, error) {
	if err := s.WaitFor(ctx, l.Selector); err != nil {
		return nil, err
	}
	html, err := s.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading listing: %w", err)
	}
	return ParseListing(html, l.Selector)
}

// ParseListing returns the non-empty id attributes of the elements matching
// selector, in document order and without repeats.
func ParseListing(html, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}
	var ids []string
	seen := make(map[string]bool)
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		id := strings.TrimSpace(sel.AttrOr("id", ""))
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	})
	return ids, nil
}

// NextButton advances by clicking the enabled next-page arrow.
type NextButton struct {
	Selector string
}

// Next reports false when no enabled next-page button is on the page.
func (n NextButton) Next(ctx context.Context, s crawl.Session) (bool, error) {
	has, err := s.Has(ctx, n.Selector)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}
	if err := s.Click(ctx, n.Selector); err != nil {
		return true, err
	}
	return true, nil
}
