package ieee

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pdiddy/paper-harvest/internal/crawl"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

// citeSteps opens the cite dialog and ticks its include-abstract box.
func (d Details) citeSteps() []crawl.Interaction {
	sel := d.Selectors
	return []crawl.Interaction{
		{Selector: sel.CiteButton, Text: sel.CiteButtonText, WaitFor: sel.CiteAbstractToggle},
		{Selector: sel.CiteAbstractToggle, WaitFor: sel.CiteText},
	}
}

func (d Details) fetchCitation(ctx context.Context, s crawl.Session, id string) crawl.DetailResult {
	html, err := s.Fetch(ctx, DocumentURL(d.BaseURL, id), d.Selectors.DetailTitle, d.citeSteps()...)
	if err != nil {
		return crawl.FetchFailed(err)
	}
	m, err := ParseCitation(html, id, d.Selectors.CiteText)
	if err != nil {
		return crawl.FetchFailed(err)
	}
	return crawl.Fetched(m)
}

// ParseCitation reads the cite dialog text matched by selector. The dialog
// shows the reference line first, then labeled "Abstract:", "Keywords:" and
// "URL:" lines; the title is the quoted part of the reference line.
func ParseCitation(html, id, selector string) (types.PaperMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return types.PaperMetadata{}, fmt.Errorf("parsing document %s: %w", id, err)
	}
	text := doc.Find(selector).First()
	if text.Length() == 0 {
		return types.PaperMetadata{}, fmt.Errorf("document %s: %w", id, ErrNoCitation)
	}

	m := types.PaperMetadata{ID: id}
	for _, line := range citeLines(text) {
		switch label, value := splitLabel(line); label {
		case "abstract":
			m.Abstract = value
		case "keywords":
			m.Keywords = strings.Trim(value, "{} ")
		case "url", "doi":
		default:
			if m.Citation == "" {
				m.Citation = line
			}
		}
	}

	var links []string
	text.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if href := strings.TrimSpace(a.AttrOr("href", "")); href != "" {
			links = append(links, href)
		}
	})
	m.Links = strings.Join(links, ";")
	m.Title = quotedTitle(m.Citation)

	if m.Title == "" {
		return m, fmt.Errorf("document %s: %w", id, ErrNoTitle)
	}
	if m.Abstract == "" {
		return m, fmt.Errorf("document %s: %w", id, ErrNoAbstract)
	}
	return m, nil
}

// citeLines returns the non-empty lines of sel's text. A <br> or a block
// child ends a line.
func citeLines(sel *goquery.Selection) []string {
	var lines []string
	var cur strings.Builder
	flush := func() {
		if l := types.CollapseSpace(cur.String()); l != "" {
			lines = append(lines, l)
		}
		cur.Reset()
	}
	sel.Contents().Each(func(_ int, n *goquery.Selection) {
		switch goquery.NodeName(n) {
		case "br":
			flush()
		case "div", "p":
			flush()
			cur.WriteString(n.Text())
			flush()
		default:
			cur.WriteString(n.Text())
		}
	})
	flush()
	return lines
}

// splitLabel splits "Abstract: text" into ("abstract", "text"). A line
// without a known label returns an empty label.
func splitLabel(line string) (string, string) {
	label, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", line
	}
	switch l := strings.ToLower(strings.TrimSpace(label)); l {
	case "abstract", "keywords", "url", "doi":
		return l, strings.TrimSpace(value)
	}
	return "", line
}

// quotedTitle returns the text between the first pair of double quotes,
// without the trailing comma IEEE places inside them.
func quotedTitle(citation string) string {
	_, rest, ok := strings.Cut(citation, `"`)
	if !ok {
		return ""
	}
	title, _, ok := strings.Cut(rest, `"`)
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(title), ","))
}
