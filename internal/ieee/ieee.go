// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ieee adapts IEEE Xplore search results to the crawl controller.
// Listing pages are read from the rendered DOM with goquery; every result
// item carries its document number as its id attribute, and each document's
// abstract page is rendered in a scratch tab.
package ieee

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-harvest/internal/browser"
	"github.com/pdiddy/paper-harvest/internal/crawl"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

const searchPath = "/search/searchresult.jsp"

// SearchURL returns the results URL for cfg.Query. page > 0 adds a
// pageNumber parameter; rows per page is added when configured.
func SearchURL(cfg types.IEEEConfig, page int) string {
	q := url.Values{}
	q.Set("newsearch", "true")
	q.Set("queryText", cfg.Query)
	if cfg.RowsPerPage > 0 {
		q.Set("rowsPerPage", strconv.Itoa(cfg.RowsPerPage))
	}
	if page > 0 {
		q.Set("pageNumber", strconv.Itoa(page))
	}
	return strings.TrimRight(cfg.BaseURL, "/") + searchPath + "?" + q.Encode()
}

// DocumentURL returns the abstract page of document id.
func DocumentURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/document/" + url.PathEscape(id) + "/"
}

// Locator opens listing pages directly by number. Every page URL is the
// start URL with its pageNumber parameter replaced.
type Locator struct {
	start *url.URL
}

// NewLocator returns a Locator for startURL. It returns nil when startURL is
// not a search results URL, leaving restarts to replay from page 1.
func NewLocator(startURL string) crawl.PageLocator {
	u, err := url.Parse(startURL)
	if err != nil || u.Host == "" || u.Path != searchPath {
		return nil
	}
	return Locator{start: u}
}

func (l Locator) PageURL(page int) string {
	u := *l.start
	q := u.Query()
	q.Set("pageNumber", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Records returns the record kind and header of the rows the crawl for cfg
// writes.
func Records(cfg types.IEEEConfig) (kind string, header []string) {
	if cfg.CiteDialog {
		return "paper_metadata", types.PaperMetadataColumns
	}
	return "paper", types.PaperColumns
}

// Site wires the IEEE collaborators for a crawl beginning at startURL.
func Site(cfg types.IEEEConfig, startURL string) crawl.Site {
	return crawl.Site{
		Extractor: Listing{Selector: cfg.Selectors.ResultItem},
		Paginator: NextButton{Selector: cfg.Selectors.NextButton},
		Details:   Details{BaseURL: cfg.BaseURL, Selectors: cfg.Selectors, CiteDialog: cfg.CiteDialog},
		Consent:   browser.ConsentStrategies(cfg.Selectors.ConsentButton),
		Locator:   NewLocator(startURL),
	}
}
