// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-harvest/internal/browser"
	"github.com/pdiddy/paper-harvest/internal/crawl"
	"github.com/pdiddy/paper-harvest/internal/ieee"
	"github.com/pdiddy/paper-harvest/internal/sink"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl IEEE Xplore search results into the paper output",
	Long: `Crawl opens an IEEE Xplore search in a headless browser and walks its
result pages. On each page it collects the document numbers, fetches every
document not already in the output, and appends its title, abstract, and
date. With ieee.cite_dialog set it reads each document's "Cite This" dialog
instead and appends title, abstract, keywords, links, and citation. The
browser is restarted every crawl.restart_interval pages.

The command exits non-zero when the crawl stops before the last page.`,
	RunE: runCrawl,
}

func init() {
	crawlCmd.Flags().String("query", "", "search text (overrides ieee.query)")
	crawlCmd.Flags().String("start-url", "", "first listing page (default: built from the query)")
	crawlCmd.Flags().Int("start-page", 0, "listing page to start on (overrides crawl.start_page)")
	crawlCmd.Flags().Int("max-pages", 0, "stop after this many listing pages (overrides crawl.max_pages)")
	crawlCmd.Flags().String("output", "", "paper output path (overrides ieee.output.path)")

	rootCmd.AddCommand(crawlCmd)
}

func runCrawl(cmd *cobra.Command, args []string) error {
	crawlCfg := cfg.Crawl
	ieeeCfg := cfg.IEEE

	if cmd.Flags().Changed("query") {
		ieeeCfg.Query, _ = cmd.Flags().GetString("query")
	}
	if cmd.Flags().Changed("start-url") {
		crawlCfg.StartURL, _ = cmd.Flags().GetString("start-url")
	}
	if cmd.Flags().Changed("start-page") {
		crawlCfg.StartPage, _ = cmd.Flags().GetInt("start-page")
	}
	if cmd.Flags().Changed("max-pages") {
		crawlCfg.MaxPages, _ = cmd.Flags().GetInt("max-pages")
	}
	if cmd.Flags().Changed("output") {
		ieeeCfg.Output.Path, _ = cmd.Flags().GetString("output")
	}
	if crawlCfg.StartURL == "" {
		crawlCfg.StartURL = ieee.SearchURL(ieeeCfg, 0)
	}

	kind, header := ieee.Records(ieeeCfg)
	out, err := sink.Open(ieeeCfg.Output, kind, header)
	if err != nil {
		return err
	}
	defer out.Close()

	site := ieee.Site(ieeeCfg, crawlCfg.StartURL)
	if site.Locator == nil {
		log.WithField("start_url", crawlCfg.StartURL).Warn("start URL is not a search results URL, restarts replay from page 1")
	}
	ctl := crawl.New(crawlCfg, browser.NewFactory(cfg.Browser, log), site, out, log)
	res := ctl.Run(cmd.Context())
	if res.State == crawl.StateFailed {
		return fmt.Errorf("crawl failed on page %d (last completed page %d): %w", res.Page, res.LastCompletedPage, res.Err)
	}
	return nil
}
