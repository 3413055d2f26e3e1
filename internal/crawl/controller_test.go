// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

func TestMain(m *testing.M) {
	ConfirmPollInterval = time.Millisecond
	goleak.VerifyTestMain(m)
}

func testConfig() types.CrawlConfig {
	return types.CrawlConfig{
		StartURL:     fakeStartURL,
		StartPage:    1,
		RetryCeiling: 3,
	}
}

func run(t *testing.T, cfg types.CrawlConfig, site *fakeSite, sink Sink, withLocator bool) (*Controller, Result, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	c := New(cfg, site.factory, site.site(withLocator), sink, log)
	res := c.Run(context.Background())
	return c, res, hook
}

func recordKeys(recs []types.Record) []string {
	keys := make([]string, len(recs))
	for i, r := range recs {
		keys[i] = r.Key()
	}
	return keys
}

func TestRun_TwoPagesThenDone(t *testing.T) {
	site := newFakeSite([]string{"a", "b"}, []string{"c"})
	sink := newMemSink()

	c, res, _ := run(t, testConfig(), site, sink, false)

	assert.Equal(t, StateDone, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 2, res.LastCompletedPage)
	assert.Equal(t, 3, res.Written)

	st := c.State()
	assert.Equal(t, 2, st.CurrentPage)
	assert.Equal(t, []string{"a", "b", "c"}, st.SeenIDs())
	assert.Equal(t, []string{"a", "b", "c"}, recordKeys(sink.records))
	assert.Equal(t, 1, site.sessions)
	assert.Equal(t, 1, site.closed, "session must be released")
	assert.Equal(t, 1, site.consent)
}

func TestRun_RestartDoesNotRefetchSeenItems(t *testing.T) {
	site := newFakeSite([]string{"a"})
	sink := newMemSink()
	cfg := testConfig()
	cfg.RestartInterval = 1

	c, res, _ := run(t, cfg, site, sink, false)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.Restarts)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []string{"a"}, site.fetched, "a must be fetched once")
	assert.Len(t, sink.records, 1)
	assert.Equal(t, []string{"a"}, c.State().SeenIDs())
	assert.Equal(t, 2, site.sessions)
	assert.Equal(t, 2, site.closed)
	assert.Equal(t, []string{fakeStartURL, fakeStartURL}, site.opens)
}

func TestRun_RestartReplaysToCurrentPage(t *testing.T) {
	site := newFakeSite([]string{"a"}, []string{"b"}, []string{"c"})
	sink := newMemSink()
	cfg := testConfig()
	cfg.RestartInterval = 2

	_, res, _ := run(t, cfg, site, sink, false)

	require.Equal(t, StateDone, res.State)
	assert.Equal(t, 3, res.Page)
	assert.Equal(t, 1, res.Restarts)
	assert.Equal(t, []string{"a", "b", "c"}, site.fetched)
	assert.Equal(t, []string{"a", "b", "c"}, recordKeys(sink.records))
}

func TestRun_RestartSeeksWithLocator(t *testing.T) {
	site := newFakeSite([]string{"a"}, []string{"b"}, []string{"c"})
	sink := newMemSink()
	cfg := testConfig()
	cfg.RestartInterval = 2

	_, res, _ := run(t, cfg, site, sink, true)

	require.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{fakeStartURL, fakeStartURL, "page:2"}, site.opens)
	assert.Equal(t, []string{"a", "b", "c"}, site.fetched)
}

func TestRun_StartPageWithLocator(t *testing.T) {
	site := newFakeSite([]string{"a"}, []string{"b"}, []string{"c"})
	sink := newMemSink()
	cfg := testConfig()
	cfg.StartPage = 2

	_, res, _ := run(t, cfg, site, sink, true)

	require.Equal(t, StateDone, res.State)
	assert.Equal(t, 3, res.Page)
	assert.Equal(t, []string{"b", "c"}, site.fetched)
}

func TestRun_EmptyListingFails(t *testing.T) {
	site := newFakeSite([]string{})
	sink := newMemSink()

	_, res, hook := run(t, testConfig(), site, sink, false)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrNoItems)
	assert.Empty(t, site.fetched, "no detail fetch may be attempted")
	assert.Equal(t, 1, site.closed)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestRun_StalledAdvanceReloadsExactlyCeilingTimes(t *testing.T) {
	for _, ceiling := range []int{0, 1, 3, 5} {
		site := newFakeSite([]string{"a"}, []string{"b"})
		site.stuck = -1
		cfg := testConfig()
		cfg.RetryCeiling = ceiling

		c, res, _ := run(t, cfg, site, newMemSink(), false)

		assert.Equal(t, StateFailed, res.State, "ceiling %d", ceiling)
		assert.ErrorIs(t, res.Err, ErrAdvanceStalled, "ceiling %d", ceiling)
		assert.Equal(t, ceiling, site.reloads, "ceiling %d", ceiling)
		assert.Equal(t, 1, c.State().CurrentPage)
		assert.Equal(t, 1, res.LastCompletedPage)
	}
}

func TestRun_StalledAdvanceRecovers(t *testing.T) {
	site := newFakeSite([]string{"a"}, []string{"b"})
	site.stuck = 2
	sink := newMemSink()

	c, res, _ := run(t, testConfig(), site, sink, false)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, site.reloads)
	assert.Equal(t, 0, c.State().ConsecutiveFailures)
	assert.Equal(t, []string{"a", "b"}, recordKeys(sink.records))
}

func TestRun_LastPageIsDone(t *testing.T) {
	site := newFakeSite([]string{"a"})
	site.stuck = -1

	_, res, _ := run(t, testConfig(), site, newMemSink(), false)

	assert.Equal(t, StateDone, res.State)
	assert.Zero(t, site.reloads)
}

func TestRun_DetailFailureIsSkipped(t *testing.T) {
	site := newFakeSite([]string{"a", "b", "c"})
	site.failDetail["b"] = true
	sink := newMemSink()

	c, res, hook := run(t, testConfig(), site, sink, false)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"a", "c"}, recordKeys(sink.records))
	assert.Equal(t, []string{"a", "c"}, c.State().SeenIDs())
	assert.Zero(t, c.State().ConsecutiveFailures)

	var errs int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["id"] == "b" {
			errs++
		}
	}
	assert.Equal(t, 1, errs)
}

func TestRun_SinkFailureIsFatal(t *testing.T) {
	site := newFakeSite([]string{"a", "b"})
	sink := newMemSink()
	sink.failOn = "b"

	_, res, _ := run(t, testConfig(), site, sink, false)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorContains(t, res.Err, "disk full")
	assert.Equal(t, 1, res.Written)
	assert.Zero(t, res.LastCompletedPage)
}

func TestRun_MaxPages(t *testing.T) {
	site := newFakeSite([]string{"a"}, []string{"b"}, []string{"c"})
	cfg := testConfig()
	cfg.MaxPages = 2

	_, res, _ := run(t, cfg, site, newMemSink(), false)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, []string{"a", "b"}, site.fetched)
}

func TestRun_KnownKeysAreSkipped(t *testing.T) {
	site := newFakeSite([]string{"a", "b"})
	sink := newMemSink("a")

	_, res, _ := run(t, testConfig(), site, sink, false)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{"b"}, site.fetched)
	assert.Equal(t, 1, res.Skipped)
}

func TestRun_SinkDuplicateStillMarksSeen(t *testing.T) {
	// Without KeyLister the controller learns about "a" only from Put.
	site := newFakeSite([]string{"a"}, []string{"a", "b"})
	inner := newMemSink("a")
	sink := plainSink{inner}

	c, res, _ := run(t, testConfig(), site, sink, false)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Written)
	assert.Equal(t, []string{"a", "b"}, site.fetched)
	assert.Equal(t, []string{"a", "b"}, c.State().SeenIDs())
}

func TestRun_OpenRetriesThenFails(t *testing.T) {
	site := newFakeSite([]string{"a"})
	site.failOpens = 10

	_, res, _ := run(t, testConfig(), site, newMemSink(), false)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, ErrNavigation)
	assert.Len(t, site.opens, 3)
}

func TestRun_OpenRecoversWithinCeiling(t *testing.T) {
	site := newFakeSite([]string{"a"})
	site.failOpens = 2

	_, res, _ := run(t, testConfig(), site, newMemSink(), false)

	assert.Equal(t, StateDone, res.State)
}

func TestRun_CancelledContext(t *testing.T) {
	site := newFakeSite([]string{"a"})
	log, _ := test.NewNullLogger()
	c := New(testConfig(), site.factory, site.site(false), newMemSink(), log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := c.Run(ctx)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Zero(t, site.sessions)
}

func TestRun_SlowRenderConfirmedWithoutReload(t *testing.T) {
	site := newFakeSite([]string{"a"}, []string{"b"}, []string{"c"})
	site.lag = 5
	cfg := testConfig()
	cfg.ConfirmTimeout = 5 * time.Second

	_, res, hook := run(t, cfg, site, newMemSink(), false)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 3, res.Page)
	assert.Equal(t, []string{"a", "b", "c"}, site.fetched)
	assert.Zero(t, site.reloads)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, "page advance failed, reloading", e.Message)
	}
}

func TestRun_ConfirmTimeoutFallsBackToReload(t *testing.T) {
	site := newFakeSite([]string{"a"}, []string{"b"})
	site.lag = 1 << 30
	cfg := testConfig()
	cfg.ConfirmTimeout = 20 * time.Millisecond

	_, res, _ := run(t, cfg, site, newMemSink(), false)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, []string{"a", "b"}, site.fetched)
	assert.Equal(t, 1, site.reloads)
}

func TestRun_CancelDuringDetailsStopsFetching(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	site := newFakeSite([]string{"a", "b", "c"})
	site.onFetch = func(id string) {
		if id == "a" {
			cancel()
		}
	}
	log, hook := test.NewNullLogger()
	c := New(testConfig(), site.factory, site.site(false), newMemSink(), log)
	res := c.Run(ctx)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, []string{"a"}, site.fetched)
	assert.Equal(t, 1, res.Written)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, "detail fetch failed, skipping item", e.Message)
	}
}

func TestRun_StoredKeysErrorFails(t *testing.T) {
	site := newFakeSite([]string{"a"})
	sink := newMemSink()
	sink.knownErr = errors.New("database is locked")

	_, res, _ := run(t, testConfig(), site, sink, false)

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorContains(t, res.Err, "database is locked")
	assert.Zero(t, site.sessions)
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateInitializing, "INITIALIZING"},
		{StateListing, "LISTING"},
		{StateDetailFetch, "DETAIL_FETCH"},
		{StateAdvancing, "ADVANCING"},
		{StateDone, "DONE"},
		{StateFailed, "FAILED"},
		{State(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.s.String())
	}
	assert.True(t, StateDone.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateAdvancing.Terminal())
}

func TestJitter(t *testing.T) {
	assert.Zero(t, jitter(0, 0))
	assert.Equal(t, 5, int(jitter(5, 5)))
	for i := 0; i < 100; i++ {
		d := jitter(10, 20)
		assert.GreaterOrEqual(t, int(d), 10)
		assert.Less(t, int(d), 20)
	}
}
