package isca

import (
	"context"
	"errors"
	"net/url"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/pdiddy/paper-harvest/internal/httputil"
)

// ErrDisallowed means robots.txt forbids fetching a URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Robots answers robots.txt queries for one user agent, fetching each
// host's rules once.
type Robots struct {
	client *httputil.Client
	agent  string
	log    logrus.FieldLogger

	groups map[string]*robotstxt.Group // scheme://host → rules, nil = allow all
}

func NewRobots(client *httputil.Client, agent string, log logrus.FieldLogger) *Robots {
	return &Robots{client: client, agent: agent, log: log, groups: make(map[string]*robotstxt.Group)}
}

// Allowed reports whether rawURL may be fetched. A robots.txt that cannot
// be fetched or parsed allows everything.
func (r *Robots) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}
	origin := u.Scheme + "://" + u.Host
	g, ok := r.groups[origin]
	if !ok {
		g = r.load(ctx, origin)
		r.groups[origin] = g
	}
	if g == nil {
		return true
	}
	return g.Test(u.EscapedPath())
}

func (r *Robots) load(ctx context.Context, origin string) *robotstxt.Group {
	robotsURL := origin + "/robots.txt"
	log := r.log.WithField("url", robotsURL)

	var data *robotstxt.RobotsData
	resp, err := r.client.Get(ctx, robotsURL)
	var se *httputil.StatusError
	switch {
	case errors.As(err, &se):
		data, err = robotstxt.FromStatusAndBytes(se.Status, nil)
	case err != nil:
		log.WithError(err).Debug("robots.txt unavailable, allowing all")
		return nil
	default:
		data, err = robotstxt.FromResponse(resp)
		resp.Body.Close()
	}
	if err != nil {
		log.WithError(err).Debug("robots.txt unreadable, allowing all")
		return nil
	}
	log.Debug("loaded robots.txt")
	return data.FindGroup(r.agent)
}
