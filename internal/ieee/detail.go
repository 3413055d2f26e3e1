package ieee

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-harvest/internal/crawl"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

// Parse failures reported for a single document. The crawl skips the
// document and continues.
var (
	// ErrNoTitle means the document page had no title.
	ErrNoTitle = errors.New("document title not found")

	// ErrNoAbstract means the document page or its cite dialog had no
	// abstract.
	ErrNoAbstract = errors.New("abstract not found")

	// ErrNoCitation means the cite dialog text was not on the page.
	ErrNoCitation = errors.New("cite dialog text not found")
)

// Details fetches and parses document abstract pages.
type Details struct {
	BaseURL   string
	Selectors types.IEEESelectors

	// CiteDialog reads the "Cite This" dialog instead of the page body.
	CiteDialog bool
}

func (d Details) Fetch(ctx context.Context, s crawl.Session, id string) crawl.DetailResult {
	if d.CiteDialog {
		return d.fetchCitation(ctx, s, id)
	}
	html, err := s.Fetch(ctx, DocumentURL(d.BaseURL, id), d.Selectors.DetailTitle)
	if err != nil {
		return crawl.FetchFailed(err)
	}
	p, err := ParseDocument(html, id, d.Selectors)
	if err != nil {
		return crawl.FetchFailed(err)
	}
	return crawl.Fetched(p)
}

// ParseDocument extracts the title, abstract, and date added from a
// rendered document page.
func ParseDocument(html, id string, sel types.IEEESelectors) (types.Paper, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.Paper{}, fmt.Errorf("parsing document %s: %w", id, err)
	}

	p := types.Paper{
		ID:       id,
		Title:    types.CollapseSpace(doc.Find(sel.DetailTitle).First().Text()),
		Abstract: types.CollapseSpace(doc.Find(sel.DetailAbstract).First().Text()),
		Date:     dateAdded(doc.Find(sel.DetailDate).First().Text()),
	}
	if p.Title == "" {
		return p, fmt.Errorf("document %s: %w", id, ErrNoTitle)
	}
	if p.Abstract == "" {
		return p, fmt.Errorf("document %s: %w", id, ErrNoAbstract)
	}
	return p, nil
}

// dateAdded returns the value after the label in
// "Date Added to IEEE Xplore: 09 April 2020".
func dateAdded(text string) string {
	text = types.CollapseSpace(text)
	if _, after, ok := strings.Cut(text, ":"); ok {
		return strings.TrimSpace(after)
	}
	return text
}
