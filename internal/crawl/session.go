// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// startSession creates a fresh browser session.
func (c *Controller) startSession(ctx context.Context) error {
	s, err := c.newSession(ctx)
	if err != nil {
		return fmt.Errorf("starting browser session: %w", err)
	}
	c.session = s
	c.pagesSinceRestart = 0
	return nil
}

func (c *Controller) closeSession() {
	if c.session == nil {
		return
	}
	if err := c.session.Close(); err != nil {
		c.log.WithError(err).Warn("closing browser session")
	}
	c.session = nil
}

// restart replaces the browser session and returns to the current page.
func (c *Controller) restart(ctx context.Context) error {
	page := c.state.CurrentPage
	c.log.WithFields(logrus.Fields{
		"page":  page,
		"pages": c.pagesSinceRestart,
	}).Info("restarting browser session")

	c.closeSession()
	if err := c.startSession(ctx); err != nil {
		return err
	}
	if err := c.seek(ctx, page); err != nil {
		return fmt.Errorf("resuming at page %d: %w", page, err)
	}
	c.result.Restarts++
	c.resumed = true
	return nil
}

// seek opens the start URL, dismisses consent, and brings the session to
// listing page target. With a PageLocator the page is opened directly;
// otherwise confirmed advances are replayed from page 1.
func (c *Controller) seek(ctx context.Context, target int) error {
	if err := c.openWithRetry(ctx, c.cfg.StartURL); err != nil {
		return err
	}
	c.dismissConsent(ctx)
	if target <= 1 {
		return nil
	}

	if c.site.Locator != nil {
		if err := c.openWithRetry(ctx, c.site.Locator.PageURL(target)); err != nil {
			return err
		}
		c.log.WithField("page", target).Info("opened listing page directly")
		return nil
	}

	c.log.WithField("page", target).Info("replaying page advances")
	for p := 1; p < target; p++ {
		ids, err := c.site.Extractor.Identifiers(ctx, c.session)
		if err != nil {
			return fmt.Errorf("%w while replaying page %d: %v", ErrNoItems, p, err)
		}
		more, err := c.step(ctx, FingerprintOf(ids))
		if err != nil {
			return err
		}
		if !more {
			return fmt.Errorf("%w: listing ends at page %d before page %d", ErrNavigation, p, target)
		}
	}
	return nil
}

// openWithRetry navigates to url, retrying failed loads up to the retry
// ceiling.
func (c *Controller) openWithRetry(ctx context.Context, url string) error {
	attempts := max(c.cfg.RetryCeiling, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.session.Open(ctx, url)
		if err == nil {
			return nil
		}
		lastErr = err
		c.log.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt,
		}).WithError(err).Warn("page load failed")
	}
	return fmt.Errorf("%w: %s after %d attempts: %v", ErrNavigation, url, attempts, lastErr)
}

// dismissConsent tries each consent strategy in order. A page without a
// consent prompt is not an error.
func (c *Controller) dismissConsent(ctx context.Context) {
	for _, s := range c.site.Consent {
		if err := s.Dismiss(ctx, c.session); err != nil {
			c.log.WithField("strategy", s.Name()).WithError(err).Debug("consent strategy did not apply")
			continue
		}
		c.log.WithField("strategy", s.Name()).Info("dismissed consent prompt")
		return
	}
	if len(c.site.Consent) > 0 {
		c.log.Warn("no consent prompt dismissed, continuing")
	}
}
