// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package crawl drives a browser session through a paginated result listing.
// The Controller lists the item identifiers on each page, fetches the detail
// view of every identifier it has not seen, hands the record to a Sink, and
// advances to the next page only once a changed page fingerprint confirms the
// advance. The browser session is torn down and recreated at a configured
// interval; the seen set makes re-listing after a restart harmless.
package crawl

import (
	"context"
	"errors"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

// Terminal errors carried by a FAILED Result.
var (
	// ErrNavigation means a page could not be loaded within the retry ceiling.
	ErrNavigation = errors.New("page load failed")

	// ErrNoItems means a listing page yielded no identifiers after retries.
	ErrNoItems = errors.New("listing page yielded no item identifiers")

	// ErrAdvanceStalled means a next-page action never produced a new page.
	ErrAdvanceStalled = errors.New("page advance not confirmed")
)

// Session is a browsing session the controller owns exclusively. Every
// blocking call is bounded by the implementation's timeouts.
type Session interface {
	// Open navigates to url and waits for the document to be ready.
	Open(ctx context.Context, url string) error

	// Reload forces a full reload of the current page.
	Reload(ctx context.Context) error

	// WaitFor blocks until selector is present or the element timeout expires.
	WaitFor(ctx context.Context, selector string) error

	// Has reports whether selector is present right now, without waiting.
	Has(ctx context.Context, selector string) (bool, error)

	// Click scrolls the first element matching selector into view and clicks it.
	Click(ctx context.Context, selector string) error

	// Eval runs js against the loaded document and returns its string result.
	Eval(ctx context.Context, js string) (string, error)

	// HTML returns the rendered document.
	HTML(ctx context.Context) (string, error)

	// Fetch loads url in a scratch tab, waits for readySelector, performs
	// steps in order, and returns the rendered document. The listing page is
	// left untouched.
	Fetch(ctx context.Context, url, readySelector string, steps ...Interaction) (string, error)

	// Close releases the browser and everything it started.
	Close() error
}

// Interaction is one click performed in a Fetch tab before the document is
// read, such as opening a dialog.
type Interaction struct {
	// Selector locates the element to click. When Text is set, the first
	// match whose text matches that regular expression is clicked instead.
	Selector string
	Text     string

	// WaitFor is a selector that must appear after the click. Empty skips
	// the wait.
	WaitFor string
}

// SessionFactory creates a fresh Session.
type SessionFactory func(ctx context.Context) (Session, error)

// Extractor reads the item identifiers visible on the loaded listing page.
type Extractor interface {
	Identifiers(ctx context.Context, s Session) ([]string, error)
}

// Paginator triggers the next-page action. It returns false when the listing
// has no next-page control, which ends the crawl normally.
type Paginator interface {
	Next(ctx context.Context, s Session) (bool, error)
}

// DetailFetcher loads and parses the detail view of one identifier.
type DetailFetcher interface {
	Fetch(ctx context.Context, s Session, id string) DetailResult
}

// PageLocator builds the URL of a listing page by number. Sites that
// support it let a restarted session seek directly instead of replaying
// advances from page 1.
type PageLocator interface {
	PageURL(page int) string
}

// ConsentStrategy is one way of dismissing an interstitial consent prompt.
type ConsentStrategy interface {
	Name() string
	Dismiss(ctx context.Context, s Session) error
}

// Sink persists records, rejecting any whose key it has already stored.
type Sink interface {
	// Put stores rec. written is false when rec's key was already present.
	Put(rec types.Record) (written bool, err error)
}

// KeyLister is implemented by sinks that can report the keys they already
// hold, so a new run does not refetch them.
type KeyLister interface {
	Known() ([]string, error)
}

// Site bundles the site-specific collaborators.
type Site struct {
	Extractor Extractor
	Paginator Paginator
	Details   DetailFetcher

	// Consent strategies are tried in order until one succeeds.
	Consent []ConsentStrategy

	// Locator is optional.
	Locator PageLocator
}

// DetailResult is the outcome of one detail fetch: a record or the reason
// there is none.
type DetailResult struct {
	Record types.Record
	Err    error
}

// Fetched wraps a successfully parsed record.
func Fetched(rec types.Record) DetailResult { return DetailResult{Record: rec} }

// FetchFailed wraps the reason a detail fetch produced no record.
func FetchFailed(err error) DetailResult { return DetailResult{Err: err} }

// OK reports whether the fetch produced a record.
func (r DetailResult) OK() bool { return r.Err == nil && r.Record != nil }
