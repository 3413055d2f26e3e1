// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pdiddy/paper-harvest/internal/crawl"
)

// ErrNoConsentButton means the consent button was not on the page.
var ErrNoConsentButton = errors.New("consent button not found")

// ClickConsent waits for a consent button and clicks it like a user.
type ClickConsent struct {
	Selector string
}

func (c ClickConsent) Name() string { return "click " + c.Selector }

func (c ClickConsent) Dismiss(ctx context.Context, s crawl.Session) error {
	if err := s.WaitFor(ctx, c.Selector); err != nil {
		return fmt.Errorf("%w: %v", ErrNoConsentButton, err)
	}
	return s.Click(ctx, c.Selector)
}

// ScriptConsent clicks the consent button from page script, which works when
// an overlay intercepts pointer events.
type ScriptConsent struct {
	Selector string
}

func (c ScriptConsent) Name() string { return "script " + c.Selector }

func (c ScriptConsent) Dismiss(ctx context.Context, s crawl.Session) error {
	js := fmt.Sprintf(`() => {
		const b = document.querySelector(%s);
		if (!b) return "missing";
		b.click();
		return "clicked";
	}`, strconv.Quote(c.Selector))
	out, err := s.Eval(ctx, js)
	if err != nil {
		return err
	}
	if out != "clicked" {
		return ErrNoConsentButton
	}
	return nil
}

// ConsentStrategies returns the ordered strategies for one consent button.
func ConsentStrategies(selector string) []crawl.ConsentStrategy {
	if selector == "" {
		return nil
	}
	return []crawl.ConsentStrategy{
		ClickConsent{Selector: selector},
		ScriptConsent{Selector: selector},
	}
}
