// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package isca

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-harvest/internal/httputil"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

// ErrNoPDFLink means a paper page links no PDF.
var ErrNoPDFLink = errors.New("no pdf link on page")

// Downloader saves the PDF linked from each paper page into cfg.PDFDir.
type Downloader struct {
	cfg    types.ISCAConfig
	client *httputil.Client
	robots *Robots // nil when robots.txt is not consulted
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewDownloader returns a Downloader using client for every request.
func NewDownloader(cfg types.ISCAConfig, client *httputil.Client, log logrus.FieldLogger) *Downloader {
	d := &Downloader{cfg: cfg, client: client, log: log, now: time.Now}
	if cfg.RespectRobots {
		d.robots = NewRobots(client, cfg.UserAgent, log)
	}
	return d
}

func (d *Downloader) allowed(ctx context.Context, u string) error {
	if d.robots != nil && !d.robots.Allowed(ctx, u) {
		return fmt.Errorf("%s: %w", u, ErrDisallowed)
	}
	return nil
}

// PDFLink returns the absolute URL of the first link on the page whose
// target ends in .pdf.
func PDFLink(pageURL string, body io.Reader) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parsing page: %w", err)
	}

	var link string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		ref, err := url.Parse(href)
		if err != nil || !strings.HasSuffix(strings.ToLower(ref.Path), ".pdf") {
			return true
		}
		link = base.ResolveReference(ref).String()
		return false
	})
	if link == "" {
		return "", ErrNoPDFLink
	}
	return link, nil
}

// Download fetches one paper page and its PDF. skipped is true when the
// PDF is already on disk.
func (d *Downloader) Download(ctx context.Context, pageURL string) (rec *types.Download, skipped bool, err error) {
	if err := d.allowed(ctx, pageURL); err != nil {
		return nil, false, err
	}
	resp, err := d.client.Get(ctx, pageURL)
	if err != nil {
		return nil, false, err
	}
	pdfURL, err := PDFLink(pageURL, resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", pageURL, err)
	}

	if err := d.allowed(ctx, pdfURL); err != nil {
		return nil, false, err
	}

	u, err := url.Parse(pdfURL)
	if err != nil {
		return nil, false, fmt.Errorf("parsing pdf url: %w", err)
	}
	name := path.Base(u.Path)
	dest := filepath.Join(d.cfg.PDFDir, name)

	if info, err := os.Stat(dest); err == nil {
		if prev, err := ReadSidecar(dest); err == nil {
			return prev, true, nil
		}
		return &types.Download{Page: pageURL, PDFURL: pdfURL, File: dest, Bytes: info.Size()}, true, nil
	}

	if err := os.MkdirAll(d.cfg.PDFDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("creating directory %s: %w", d.cfg.PDFDir, err)
	}

	n, err := d.downloadFile(ctx, pdfURL, dest)
	if err != nil {
		return nil, false, fmt.Errorf("downloading %s: %w", name, err)
	}

	rec = &types.Download{
		Page:         pageURL,
		PDFURL:       pdfURL,
		File:         dest,
		Bytes:        n,
		DownloadedAt: d.now().UTC(),
	}
	if err := writeSidecar(rec); err != nil {
		return nil, false, fmt.Errorf("writing metadata for %s: %w", name, err)
	}
	return rec, false, nil
}

// Run downloads the PDF of every page, pausing cfg.Delay between pages. It
// continues after individual failures.
func (d *Downloader) Run(ctx context.Context, pages []string) (Summary, error) {
	var sum Summary
	var total int64
	for i, page := range pages {
		if i > 0 && d.cfg.Delay > 0 {
			t := time.NewTimer(d.cfg.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return sum, ctx.Err()
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		log := d.log.WithFields(logrus.Fields{"url": page, "n": i + 1, "of": len(pages)})
		rec, skipped, err := d.Download(ctx, page)
		switch {
		case errors.Is(err, ErrDisallowed):
			sum.Skipped++
			log.Warn("skipping page disallowed by robots.txt")
		case err != nil:
			sum.Failed++
			log.WithError(err).Error("pdf download failed")
		case skipped:
			sum.Skipped++
			log.WithField("file", rec.File).Info("pdf already downloaded")
		default:
			sum.Saved++
			total += rec.Bytes
			log.WithFields(logrus.Fields{
				"file": rec.File,
				"size": humanize.Bytes(uint64(rec.Bytes)),
			}).Info("downloaded pdf")
		}
	}

	d.log.WithFields(logrus.Fields{
		"downloaded": sum.Saved,
		"skipped":    sum.Skipped,
		"failed":     sum.Failed,
		"total":      sum.Total(),
		"bytes":      humanize.Bytes(uint64(total)),
	}).Info("pdf batch finished")
	return sum, nil
}

// downloadFile streams src into destPath through a temporary file so a
// failed transfer never leaves a partial PDF behind.
func (d *Downloader) downloadFile(ctx context.Context, src, destPath string) (int64, error) {
	resp, err := d.client.Get(ctx, src)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}

func sidecarPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".yaml"
}

func writeSidecar(rec *types.Download) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(sidecarPath(rec.File), data, 0o644)
}

// ReadSidecar reads the metadata written next to a downloaded PDF.
func ReadSidecar(pdfPath string) (*types.Download, error) {
	data, err := os.ReadFile(sidecarPath(pdfPath))
	if err != nil {
		return nil, err
	}
	var rec types.Download
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
