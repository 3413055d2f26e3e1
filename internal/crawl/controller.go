// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

// ConfirmPollInterval is how often the listing is re-read while waiting for
// a page advance to show. Tests shorten it.
var ConfirmPollInterval = 250 * time.Millisecond

// State is a controller state.
type State int

const (
	StateInitializing State = iota
	StateListing
	StateDetailFetch
	StateAdvancing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateListing:
		return "LISTING"
	case StateDetailFetch:
		return "DETAIL_FETCH"
	case StateAdvancing:
		return "ADVANCING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s ends the crawl.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CrawlState is the controller's progress record.
type CrawlState struct {
	// CurrentPage increments only on a confirmed page advance.
	CurrentPage int

	ConsecutiveFailures int

	// Seen grows monotonically and is the sole de-duplication authority.
	Seen map[string]struct{}
}

// SeenIDs returns the seen identifiers in sorted order.
func (s CrawlState) SeenIDs() []string {
	ids := make([]string, 0, len(s.Seen))
	for id := range s.Seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Result summarizes a finished crawl.
type Result struct {
	State State

	// Page is the listing page the crawl ended on.
	Page int

	// LastCompletedPage is the last page whose items were all processed.
	LastCompletedPage int

	Written    int // records accepted by the sink
	Duplicates int // records the sink rejected as already stored
	Skipped    int // identifiers skipped because they were already seen
	Failed     int // detail fetches that produced no record
	Restarts   int

	// Err is the terminating condition of a FAILED crawl.
	Err error
}

// Controller runs one paginated crawl. It is not safe for concurrent use.
type Controller struct {
	cfg        types.CrawlConfig
	newSession SessionFactory
	site       Site
	sink       Sink
	log        logrus.FieldLogger

	session Session
	state   CrawlState
	pageIDs []string

	// pagesSinceRestart counts processed pages since the session was
	// created. A page re-listed right after a restart is not counted.
	pagesSinceRestart int
	resumed           bool

	result Result
}

// New returns a Controller. cfg is copied; the sink and site collaborators
// are used by reference.
func New(cfg types.CrawlConfig, newSession SessionFactory, site Site, sink Sink, log logrus.FieldLogger) *Controller {
	if cfg.StartPage < 1 {
		cfg.StartPage = 1
	}
	if cfg.RetryCeiling < 0 {
		cfg.RetryCeiling = 0
	}
	return &Controller{
		cfg:        cfg,
		newSession: newSession,
		site:       site,
		sink:       sink,
		log:        log,
		state: CrawlState{
			CurrentPage: cfg.StartPage,
			Seen:        make(map[string]struct{}),
		},
	}
}

// State returns a copy of the crawl state.
func (c *Controller) State() CrawlState {
	seen := make(map[string]struct{}, len(c.state.Seen))
	for id := range c.state.Seen {
		seen[id] = struct{}{}
	}
	st := c.state
	st.Seen = seen
	return st
}

// Run drives the state machine until DONE or FAILED. The browser session is
// always released before Run returns.
func (c *Controller) Run(ctx context.Context) Result {
	defer c.closeSession()

	state := StateInitializing
	for !state.Terminal() {
		if err := ctx.Err(); err != nil {
			state = c.fail(err)
			break
		}
		switch state {
		case StateInitializing:
			state = c.initialize(ctx)
		case StateListing:
			state = c.list(ctx)
		case StateDetailFetch:
			state = c.fetchDetails(ctx)
		case StateAdvancing:
			state = c.advance(ctx)
		}
	}

	c.result.State = state
	c.result.Page = c.state.CurrentPage
	fields := logrus.Fields{
		"state":      state.String(),
		"page":       c.result.Page,
		"written":    c.result.Written,
		"duplicates": c.result.Duplicates,
		"skipped":    c.result.Skipped,
		"failed":     c.result.Failed,
		"restarts":   c.result.Restarts,
	}
	if state == StateFailed {
		c.log.WithFields(fields).WithField("last_completed_page", c.result.LastCompletedPage).
			WithError(c.result.Err).Error("crawl failed")
	} else {
		c.log.WithFields(fields).Info("crawl finished")
	}
	return c.result
}

func (c *Controller) initialize(ctx context.Context) State {
	if kl, ok := c.sink.(KeyLister); ok {
		keys, err := kl.Known()
		if err != nil {
			return c.fail(fmt.Errorf("loading stored identifiers: %w", err))
		}
		for _, k := range keys {
			c.state.Seen[k] = struct{}{}
		}
		if n := len(c.state.Seen); n > 0 {
			c.log.WithField("known", n).Info("loaded previously stored identifiers")
		}
	}
	if err := c.startSession(ctx); err != nil {
		return c.fail(err)
	}
	if err := c.seek(ctx, c.cfg.StartPage); err != nil {
		return c.fail(err)
	}
	return StateListing
}

func (c *Controller) list(ctx context.Context) State {
	ids, err := c.listWithRetry(ctx)
	if err != nil {
		return c.fail(err)
	}
	c.pageIDs = ids
	c.log.WithFields(logrus.Fields{
		"page":        c.state.CurrentPage,
		"items":       len(ids),
		"fingerprint": FingerprintOf(ids).String(),
	}).Info("processing listing page")
	return StateDetailFetch
}

func (c *Controller) fetchDetails(ctx context.Context) State {
	fetched, saved := 0, 0
	for _, id := range c.pageIDs {
		if err := ctx.Err(); err != nil {
			return c.fail(err)
		}
		if _, ok := c.state.Seen[id]; ok {
			c.result.Skipped++
			continue
		}
		if fetched > 0 {
			if err := c.pause(ctx); err != nil {
				return c.fail(err)
			}
		}
		fetched++

		res := c.site.Details.Fetch(ctx, c.session, id)
		if !res.OK() {
			err := res.Err
			if err == nil {
				err = errors.New("no record produced")
			}
			c.log.WithFields(logrus.Fields{"page": c.state.CurrentPage, "id": id}).
				WithError(err).Error("detail fetch failed, skipping item")
			c.result.Failed++
			continue
		}

		written, err := c.sink.Put(res.Record)
		if err != nil {
			return c.fail(fmt.Errorf("persisting %s: %w", id, err))
		}
		c.state.Seen[id] = struct{}{}
		if written {
			c.result.Written++
			saved++
			c.log.WithFields(logrus.Fields{"page": c.state.CurrentPage, "id": id}).Info("saved item")
		} else {
			c.result.Duplicates++
		}
	}

	c.log.WithFields(logrus.Fields{
		"page":  c.state.CurrentPage,
		"saved": saved,
		"items": len(c.pageIDs),
	}).Info("listing page complete")
	c.result.LastCompletedPage = c.state.CurrentPage
	if !c.resumed {
		c.pagesSinceRestart++
	}
	c.resumed = false
	return StateAdvancing
}

func (c *Controller) advance(ctx context.Context) State {
	if c.cfg.MaxPages > 0 && c.state.CurrentPage-c.cfg.StartPage+1 >= c.cfg.MaxPages {
		c.log.WithField("max_pages", c.cfg.MaxPages).Info("page limit reached")
		return StateDone
	}

	if c.cfg.RestartInterval > 0 && c.pagesSinceRestart >= c.cfg.RestartInterval {
		if err := c.restart(ctx); err != nil {
			return c.fail(err)
		}
		return StateListing
	}

	if err := c.pause(ctx); err != nil {
		return c.fail(err)
	}
	more, err := c.step(ctx, FingerprintOf(c.pageIDs))
	if err != nil {
		return c.fail(err)
	}
	if !more {
		c.log.WithField("page", c.state.CurrentPage).Info("reached last page")
		return StateDone
	}
	c.state.CurrentPage++
	c.log.WithField("page", c.state.CurrentPage).Info("advanced to next page")
	return StateListing
}

// step performs one confirmed page advance from the page whose fingerprint
// is before. It returns false when there is no next page. An advance not
// confirmed within the confirm timeout is retried after a full reload until
// ConsecutiveFailures reaches the retry ceiling.
func (c *Controller) step(ctx context.Context, before Fingerprint) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		more, err := c.site.Paginator.Next(ctx, c.session)
		if err == nil && !more {
			return false, nil
		}
		if err == nil {
			if c.advanced(ctx, before) {
				c.state.ConsecutiveFailures = 0
				return true, nil
			}
			err = errors.New("fingerprint unchanged")
		}

		if c.state.ConsecutiveFailures >= c.cfg.RetryCeiling {
			return false, fmt.Errorf("%w on page %d after %d reloads: %v",
				ErrAdvanceStalled, c.state.CurrentPage, c.state.ConsecutiveFailures, err)
		}
		c.state.ConsecutiveFailures++
		c.log.WithFields(logrus.Fields{
			"page":    c.state.CurrentPage,
			"attempt": c.state.ConsecutiveFailures,
			"ceiling": c.cfg.RetryCeiling,
		}).WithError(err).Warn("page advance failed, reloading")

		if rerr := c.session.Reload(ctx); rerr != nil {
			c.log.WithField("page", c.state.CurrentPage).WithError(rerr).Warn("reload failed")
		}
		// The reload itself may already show the next page.
		if c.advanced(ctx, before) {
			c.state.ConsecutiveFailures = 0
			return true, nil
		}
	}
}

// advanced waits up to the confirm timeout for the listing to show at least
// one identifier and a fingerprint different from before. A zero timeout
// reads the listing once.
func (c *Controller) advanced(ctx context.Context, before Fingerprint) bool {
	deadline := time.Now().Add(c.cfg.ConfirmTimeout)
	for {
		ids, err := c.site.Extractor.Identifiers(ctx, c.session)
		if err == nil && len(ids) > 0 && FingerprintOf(ids) != before {
			return true
		}
		wait := min(ConfirmPollInterval, time.Until(deadline))
		if wait <= 0 {
			return false
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
}

// listWithRetry extracts the current page's identifiers, reloading between
// attempts.
func (c *Controller) listWithRetry(ctx context.Context) ([]string, error) {
	attempts := max(c.cfg.RetryCeiling, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		ids, err := c.site.Extractor.Identifiers(ctx, c.session)
		if err == nil && len(ids) > 0 {
			return ids, nil
		}
		if err == nil {
			err = errors.New("empty listing")
		}
		lastErr = err
		c.log.WithFields(logrus.Fields{
			"page":    c.state.CurrentPage,
			"attempt": attempt,
		}).WithError(err).Warn("listing extraction failed")
		if attempt < attempts {
			if rerr := c.session.Reload(ctx); rerr != nil {
				c.log.WithError(rerr).Warn("reload failed")
			}
		}
	}
	return nil, fmt.Errorf("%w on page %d: %v", ErrNoItems, c.state.CurrentPage, lastErr)
}

// pause sleeps for a random duration within the configured delay bounds.
func (c *Controller) pause(ctx context.Context) error {
	d := jitter(c.cfg.DelayMin, c.cfg.DelayMax)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)))
}

func (c *Controller) fail(err error) State {
	c.result.Err = err
	return StateFailed
}
