// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-harvest/internal/crawl"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

// scriptedSession records calls and answers from canned results.
type scriptedSession struct {
	crawl.Session
	waitErr error
	evalOut string
	clicked []string
	scripts []string
}

func (s *scriptedSession) WaitFor(context.Context, string) error { return s.waitErr }

func (s *scriptedSession) Click(_ context.Context, sel string) error {
	s.clicked = append(s.clicked, sel)
	return nil
}

func (s *scriptedSession) Eval(_ context.Context, js string) (string, error) {
	s.scripts = append(s.scripts, js)
	return s.evalOut, nil
}

func TestClickConsent(t *testing.T) {
	s := &scriptedSession{}
	err := ClickConsent{Selector: "#accept"}.Dismiss(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"#accept"}, s.clicked)

	s = &scriptedSession{waitErr: errors.New("timeout")}
	err = ClickConsent{Selector: "#accept"}.Dismiss(context.Background(), s)
	assert.ErrorIs(t, err, ErrNoConsentButton)
	assert.Empty(t, s.clicked)
}

func TestScriptConsent(t *testing.T) {
	s := &scriptedSession{evalOut: "clicked"}
	require.NoError(t, ScriptConsent{Selector: `button[data-x="y"]`}.Dismiss(context.Background(), s))
	require.Len(t, s.scripts, 1)
	assert.Contains(t, s.scripts[0], `"button[data-x=\"y\"]"`)

	s = &scriptedSession{evalOut: "missing"}
	assert.ErrorIs(t, ScriptConsent{Selector: "#a"}.Dismiss(context.Background(), s), ErrNoConsentButton)
}

func TestConsentStrategies(t *testing.T) {
	assert.Nil(t, ConsentStrategies(""))
	got := ConsentStrategies("#accept")
	require.Len(t, got, 2)
	assert.Equal(t, "click #accept", got[0].Name())
	assert.Equal(t, "script #accept", got[1].Name())
}

func TestSession_AgainstChromium(t *testing.T) {
	bin, ok := launcher.LookPath()
	if !ok || testing.Short() {
		t.Skip("no local Chromium")
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/detail":
			fmt.Fprint(w, `<html><body><h1 class="title">Detail</h1></body></html>`)
		case "/cite":
			fmt.Fprint(w, `<html><body><h1 class="title">Detail</h1>
				<script>
				function tick() {
					var d = document.createElement("div");
					d.className = "text";
					d.textContent = "abstract " + "included";
					document.body.appendChild(d);
				}
				function cite() {
					var b = document.createElement("input");
					b.type = "checkbox";
					b.onclick = tick;
					document.body.appendChild(b);
				}
				</script>
				<button>Download</button>
				<button onclick="cite()">Cite This</button>
			</body></html>`)
		default:
			fmt.Fprint(w, `<html><body>
				<div class="item" id="1"></div><div class="item" id="2"></div>
				<button id="accept" onclick="document.body.dataset.ok='yes'">OK</button>
			</body></html>`)
		}
	}))
	defer ts.Close()

	log, _ := test.NewNullLogger()
	cfg := types.BrowserConfig{
		Bin:            bin,
		Headless:       true,
		UserAgent:      "harvest-test",
		PageTimeout:    30 * time.Second,
		ElementTimeout: 5 * time.Second,
		BlockResources: []string{"image"},
	}
	ctx := context.Background()
	s, err := Start(ctx, cfg, log)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Open(ctx, ts.URL+"/list"))
	has, err := s.Has(ctx, "div.item")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, ClickConsent{Selector: "#accept"}.Dismiss(ctx, s))
	ok2, err := s.Eval(ctx, `() => document.body.dataset.ok || ""`)
	require.NoError(t, err)
	assert.Equal(t, "yes", ok2)

	ua, err := s.Eval(ctx, `() => navigator.userAgent`)
	require.NoError(t, err)
	assert.Equal(t, "harvest-test", ua)

	html, err := s.Fetch(ctx, ts.URL+"/detail", "h1.title")
	require.NoError(t, err)
	assert.True(t, strings.Contains(html, "Detail"))

	html, err = s.Fetch(ctx, ts.URL+"/cite", "h1.title",
		crawl.Interaction{Selector: "button", Text: "Cite This", WaitFor: "input[type=checkbox]"},
		crawl.Interaction{Selector: "input[type=checkbox]", WaitFor: "div.text"},
	)
	require.NoError(t, err)
	assert.Contains(t, html, `<div class="text">abstract included</div>`)

	_, err = s.Fetch(ctx, ts.URL+"/detail", "h1.title", crawl.Interaction{Selector: "#missing"})
	assert.Error(t, err)

	// The listing tab is untouched by Fetch.
	html, err = s.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, `id="2"`)

	require.NoError(t, s.Reload(ctx))
	assert.Error(t, s.WaitFor(ctx, "#never"))
}
