// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser implements crawl.Session on a headless Chromium driven
// through the DevTools protocol. Each Session owns its own browser process;
// Close kills it and removes its profile directory.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/sirupsen/logrus"

	"github.com/pdiddy/paper-harvest/internal/crawl"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

// Session is a single browser with one long-lived listing tab.
type Session struct {
	cfg      types.BrowserConfig
	log      logrus.FieldLogger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
}

var _ crawl.Session = (*Session)(nil)

// NewFactory returns a crawl.SessionFactory that launches a new browser
// for every call.
func NewFactory(cfg types.BrowserConfig, log logrus.FieldLogger) crawl.SessionFactory {
	return func(ctx context.Context) (crawl.Session, error) {
		return Start(ctx, cfg, log)
	}
}

// Start launches Chromium, connects to it, and opens a stealth tab.
func Start(ctx context.Context, cfg types.BrowserConfig, log logrus.FieldLogger) (*Session, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled").
		Set(flags.Flag("disable-dev-shm-usage")).
		Set(flags.Flag("ignore-certificate-errors")).
		Set(flags.NoSandbox)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	s := &Session{cfg: cfg, log: log, launcher: l, browser: b}

	if len(cfg.BlockResources) > 0 {
		if err := s.blockResources(); err != nil {
			s.Close()
			return nil, err
		}
	}

	page, err := s.newTab(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.page = page

	log.WithFields(logrus.Fields{
		"headless": cfg.Headless,
		"blocked":  strings.Join(cfg.BlockResources, ","),
	}).Debug("browser session started")
	return s, nil
}

var resourceTypes = map[string]proto.NetworkResourceType{
	"image":      proto.NetworkResourceTypeImage,
	"stylesheet": proto.NetworkResourceTypeStylesheet,
	"font":       proto.NetworkResourceTypeFont,
	"media":      proto.NetworkResourceTypeMedia,
}

func (s *Session) blockResources() error {
	router := s.browser.HijackRequests()
	for _, name := range s.cfg.BlockResources {
		rt, ok := resourceTypes[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown resource type %q", name)
		}
		err := router.Add("*", rt, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
		if err != nil {
			return fmt.Errorf("blocking %s: %w", name, err)
		}
	}
	go router.Run()
	s.router = router
	return nil
}

func (s *Session) newTab(ctx context.Context) (*rod.Page, error) {
	page, err := stealth.Page(s.browser.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("opening tab: %w", err)
	}
	// The tab outlives ctx; operations rebind their own context.
	page = page.Context(context.Background())
	if s.cfg.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent})
		if err != nil {
			page.Close()
			return nil, fmt.Errorf("setting user agent: %w", err)
		}
	}
	return page, nil
}

func bound(ctx context.Context, page *rod.Page, d time.Duration) (*rod.Page, context.CancelFunc) {
	if d <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return page.Context(ctx), cancel
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return page.Context(ctx), cancel
}

func load(p *rod.Page, url string) error {
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

func (s *Session) Open(ctx context.Context, url string) error {
	p, cancel := bound(ctx, s.page, s.cfg.PageTimeout)
	defer cancel()
	if err := load(p, url); err != nil {
		return fmt.Errorf("opening %s: %w", url, err)
	}
	return nil
}

func (s *Session) Reload(ctx context.Context) error {
	p, cancel := bound(ctx, s.page, s.cfg.PageTimeout)
	defer cancel()
	if err := p.Reload(); err != nil {
		return fmt.Errorf("reloading: %w", err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("reloading: %w", err)
	}
	return nil
}

func (s *Session) WaitFor(ctx context.Context, selector string) error {
	p, cancel := bound(ctx, s.page, s.cfg.ElementTimeout)
	defer cancel()
	if _, err := p.Element(selector); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

func (s *Session) Has(ctx context.Context, selector string) (bool, error) {
	p, cancel := bound(ctx, s.page, s.cfg.ElementTimeout)
	defer cancel()
	has, _, err := p.Has(selector)
	return has, err
}

func (s *Session) Click(ctx context.Context, selector string) error {
	p, cancel := bound(ctx, s.page, s.cfg.ElementTimeout)
	defer cancel()
	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("finding %s: %w", selector, err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return fmt.Errorf("scrolling to %s: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

func (s *Session) Eval(ctx context.Context, js string) (string, error) {
	p, cancel := bound(ctx, s.page, s.cfg.ElementTimeout)
	defer cancel()
	res, err := p.Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	p, cancel := bound(ctx, s.page, s.cfg.PageTimeout)
	defer cancel()
	return p.HTML()
}

// Fetch renders url in a throwaway tab so the listing tab keeps its
// position.
func (s *Session) Fetch(ctx context.Context, url, readySelector string, steps ...crawl.Interaction) (string, error) {
	tab, err := s.newTab(ctx)
	if err != nil {
		return "", err
	}
	defer tab.Close()

	p, cancel := bound(ctx, tab, s.cfg.PageTimeout)
	defer cancel()
	if err := load(p, url); err != nil {
		return "", fmt.Errorf("opening %s: %w", url, err)
	}
	if readySelector != "" {
		w, wcancel := bound(ctx, tab, s.cfg.ElementTimeout)
		_, err := w.Element(readySelector)
		wcancel()
		if err != nil {
			return "", fmt.Errorf("waiting for %s on %s: %w", readySelector, url, err)
		}
	}
	for _, st := range steps {
		if err := s.interact(ctx, tab, st); err != nil {
			return "", fmt.Errorf("%s: %w", url, err)
		}
	}
	return p.HTML()
}

// interact clicks the element st names through a script call and waits for
// st.WaitFor.
func (s *Session) interact(ctx context.Context, tab *rod.Page, st crawl.Interaction) error {
	p, cancel := bound(ctx, tab, s.cfg.ElementTimeout)
	defer cancel()

	var el *rod.Element
	var err error
	if st.Text != "" {
		el, err = p.ElementR(st.Selector, st.Text)
	} else {
		el, err = p.Element(st.Selector)
	}
	if err != nil {
		return fmt.Errorf("finding %s: %w", st.Selector, err)
	}
	if _, err := el.Eval(`() => this.click()`); err != nil {
		return fmt.Errorf("clicking %s: %w", st.Selector, err)
	}
	if st.WaitFor != "" {
		if _, err := p.Element(st.WaitFor); err != nil {
			return fmt.Errorf("waiting for %s: %w", st.WaitFor, err)
		}
	}
	return nil
}

// Close stops request interception, closes the browser, and removes its
// profile directory.
func (s *Session) Close() error {
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			s.log.WithError(err).Debug("stopping request router")
		}
	}
	err := s.browser.Close()
	s.launcher.Kill()
	s.launcher.Cleanup()
	if err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}
