// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

const fakeStartURL = "https://listing.test/search"

// fakeSite simulates a paginated listing shared by every session it hands
// out. A new session always starts on page 1.
type fakeSite struct {
	pages [][]string

	// stuck is how many Next calls leave the page unchanged. -1 means every
	// call does.
	stuck int

	// lag is how many listing reads after a Next still show the previous
	// page. A reload renders the current page at once.
	lag int

	failDetail map[string]bool
	onFetch    func(id string)
	failOpens  int

	sessions int
	closed   int
	opens    []string
	reloads  int
	fetched  []string
	consent  int
}

func newFakeSite(pages ...[]string) *fakeSite {
	return &fakeSite{pages: pages, failDetail: map[string]bool{}}
}

func (f *fakeSite) factory(context.Context) (Session, error) {
	f.sessions++
	return &fakeSession{site: f}, nil
}

func (f *fakeSite) site(withLocator bool) Site {
	s := Site{
		Extractor: fakeExtractor{},
		Paginator: fakePaginator{site: f},
		Details:   fakeDetails{site: f},
		Consent:   []ConsentStrategy{failingConsent{}, fakeConsent{site: f}},
	}
	if withLocator {
		s.Locator = fakeLocator{}
	}
	return s
}

type fakeSession struct {
	site   *fakeSite
	page   int
	closed bool

	// rendered is the page the listing shows; it trails page by pending reads.
	rendered int
	pending  int
}

func (s *fakeSession) show(page int) {
	s.page, s.rendered, s.pending = page, page, 0
}

func (s *fakeSession) Open(_ context.Context, url string) error {
	if s.closed {
		return errors.New("session closed")
	}
	s.site.opens = append(s.site.opens, url)
	if s.site.failOpens > 0 {
		s.site.failOpens--
		return errors.New("navigation timeout")
	}
	if n, ok := strings.CutPrefix(url, "page:"); ok {
		p, err := strconv.Atoi(n)
		if err != nil {
			return err
		}
		s.show(p - 1)
		return nil
	}
	s.show(0)
	return nil
}

func (s *fakeSession) Reload(context.Context) error {
	s.site.reloads++
	s.show(s.page)
	return nil
}

func (s *fakeSession) WaitFor(context.Context, string) error        { return nil }
func (s *fakeSession) Has(context.Context, string) (bool, error)    { return false, nil }
func (s *fakeSession) Click(context.Context, string) error          { return nil }
func (s *fakeSession) Eval(context.Context, string) (string, error) { return "", nil }
func (s *fakeSession) HTML(context.Context) (string, error)         { return "", nil }

func (s *fakeSession) Fetch(context.Context, string, string, ...Interaction) (string, error) {
	return "", nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	s.site.closed++
	return nil
}

type fakeExtractor struct{}

func (fakeExtractor) Identifiers(_ context.Context, s Session) ([]string, error) {
	fs := s.(*fakeSession)
	if fs.closed {
		return nil, errors.New("session closed")
	}
	if fs.rendered != fs.page {
		if fs.pending > 0 {
			fs.pending--
			return append([]string(nil), fs.site.pages[fs.rendered]...), nil
		}
		fs.rendered = fs.page
	}
	return append([]string(nil), fs.site.pages[fs.page]...), nil
}

type fakePaginator struct{ site *fakeSite }

func (p fakePaginator) Next(_ context.Context, s Session) (bool, error) {
	fs := s.(*fakeSession)
	if fs.page >= len(p.site.pages)-1 {
		return false, nil
	}
	if p.site.stuck != 0 {
		if p.site.stuck > 0 {
			p.site.stuck--
		}
		return true, nil
	}
	fs.page++
	fs.pending = p.site.lag
	return true, nil
}

type fakeDetails struct{ site *fakeSite }

func (d fakeDetails) Fetch(_ context.Context, _ Session, id string) DetailResult {
	d.site.fetched = append(d.site.fetched, id)
	if d.site.onFetch != nil {
		d.site.onFetch(id)
	}
	if d.site.failDetail[id] {
		return FetchFailed(fmt.Errorf("detail page for %s timed out", id))
	}
	return Fetched(types.Paper{ID: id, Title: "Title " + id})
}

type fakeLocator struct{}

func (fakeLocator) PageURL(page int) string { return "page:" + strconv.Itoa(page) }

type fakeConsent struct{ site *fakeSite }

func (fakeConsent) Name() string { return "fake" }

func (c fakeConsent) Dismiss(context.Context, Session) error {
	c.site.consent++
	return nil
}

type failingConsent struct{}

func (failingConsent) Name() string { return "failing" }

func (failingConsent) Dismiss(context.Context, Session) error {
	return errors.New("no consent button")
}

// memSink is an in-memory Sink keyed by record key.
type memSink struct {
	known    []string
	knownErr error
	keys     map[string]bool
	records  []types.Record
	failOn   string
}

func newMemSink(known ...string) *memSink {
	m := &memSink{known: known, keys: map[string]bool{}}
	for _, k := range known {
		m.keys[k] = true
	}
	return m
}

func (m *memSink) Put(rec types.Record) (bool, error) {
	if rec.Key() == m.failOn {
		return false, errors.New("disk full")
	}
	if m.keys[rec.Key()] {
		return false, nil
	}
	m.keys[rec.Key()] = true
	m.records = append(m.records, rec)
	return true, nil
}

func (m *memSink) Known() ([]string, error) { return m.known, m.knownErr }

// plainSink hides memSink's KeyLister implementation.
type plainSink struct{ mem *memSink }

func (p plainSink) Put(rec types.Record) (bool, error) { return p.mem.Put(rec) }
