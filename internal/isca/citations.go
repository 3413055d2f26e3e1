// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package isca

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocolly/colly"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-harvest/internal/crawl"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

// ErrNoCitation means a paper page had no citation element.
var ErrNoCitation = errors.New("citation not found")

// Summary counts the outcome of a batch over paper pages.
type Summary struct {
	Saved   int
	Skipped int
	Failed  int
}

// Total returns the number of URLs processed.
func (s Summary) Total() int {
	return s.Saved + s.Skipped + s.Failed
}

// CitationScraper reads the citation text from each paper page.
type CitationScraper struct {
	cfg types.ISCAConfig
	log logrus.FieldLogger
	c   *colly.Collector

	// last holds the citation found by the most recent visit.
	last string
}

// NewCitationScraper builds a synchronous collector that pauses cfg.Delay
// between requests.
func NewCitationScraper(cfg types.ISCAConfig, log logrus.FieldLogger) (*CitationScraper, error) {
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
	)
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}
	if cfg.Delay > 0 {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: cfg.Delay}); err != nil {
			return nil, fmt.Errorf("setting rate limit: %w", err)
		}
	}

	s := &CitationScraper{cfg: cfg, log: log, c: c}
	c.OnHTML(cfg.CitationSelector, func(e *colly.HTMLElement) {
		if s.last == "" {
			s.last = types.CollapseSpace(e.Text)
		}
	})
	return s, nil
}

// Citation fetches one paper page and returns its citation.
func (s *CitationScraper) Citation(url string) (types.Citation, error) {
	s.last = ""
	if err := s.c.Visit(url); err != nil {
		return types.Citation{}, fmt.Errorf("visiting %s: %w", url, err)
	}
	if s.last == "" {
		return types.Citation{}, fmt.Errorf("%s: %w", url, ErrNoCitation)
	}
	return types.Citation{URL: url, Text: s.last}, nil
}

// Run scrapes every URL not already in out. A page without a citation is
// logged and skipped; a sink error stops the batch.
func (s *CitationScraper) Run(ctx context.Context, urls []string, out crawl.Sink) (Summary, error) {
	var sum Summary
	known := make(map[string]bool)
	if kl, ok := out.(crawl.KeyLister); ok {
		keys, err := kl.Known()
		if err != nil {
			return sum, fmt.Errorf("loading stored citations: %w", err)
		}
		for _, k := range keys {
			known[k] = true
		}
	}

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		log := s.log.WithFields(logrus.Fields{"url": u, "n": i + 1, "of": len(urls)})
		if known[u] {
			sum.Skipped++
			log.Debug("citation already stored")
			continue
		}

		cit, err := s.Citation(u)
		if err != nil {
			sum.Failed++
			log.WithError(err).Error("citation scrape failed")
			continue
		}
		written, err := out.Put(cit)
		if err != nil {
			return sum, fmt.Errorf("persisting %s: %w", u, err)
		}
		if !written {
			sum.Skipped++
			continue
		}
		sum.Saved++
		log.Info("saved citation")
	}

	s.log.WithFields(logrus.Fields{
		"saved":   sum.Saved,
		"skipped": sum.Skipped,
		"failed":  sum.Failed,
		"total":   sum.Total(),
	}).Info("citation batch finished")
	return sum, nil
}
