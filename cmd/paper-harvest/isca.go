// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-harvest/internal/httputil"
	"github.com/pdiddy/paper-harvest/internal/isca"
	"github.com/pdiddy/paper-harvest/internal/sink"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

var citeCmd = &cobra.Command{
	Use:   "cite [urls-file]",
	Short: "Scrape citations from ISCA Archive paper pages",
	Long: `Cite reads ISCA Archive paper page URLs, one per line, and appends each
page's citation text to the citation output. URLs already in the output are
skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCite,
}

var downloadCmd = &cobra.Command{
	Use:   "download [urls-file]",
	Short: "Download the PDFs linked from ISCA Archive paper pages",
	Long: `Download reads ISCA Archive paper page URLs, one per line, finds the PDF
link on each page, and saves the PDF with a YAML metadata file into
isca.pdf_dir. PDFs already on disk are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDownload,
}

func init() {
	citeCmd.Flags().String("output", "", "citation output path (overrides isca.output.path)")
	downloadCmd.Flags().String("pdf-dir", "", "directory for PDFs (overrides isca.pdf_dir)")
	for _, c := range []*cobra.Command{citeCmd, downloadCmd} {
		c.Flags().Duration("delay", 0, "pause between paper pages (overrides isca.delay)")
		rootCmd.AddCommand(c)
	}
}

// iscaConfig applies the flags shared by the ISCA commands and reads the
// URL list, from the argument when given.
func iscaConfig(cmd *cobra.Command, args []string) (types.ISCAConfig, []string, error) {
	c := cfg.ISCA
	if cmd.Flags().Changed("delay") {
		c.Delay, _ = cmd.Flags().GetDuration("delay")
	}
	if len(args) == 1 {
		c.URLsFile = args[0]
	}
	urls, err := isca.ReadURLs(c.URLsFile)
	if err != nil {
		return c, nil, err
	}
	if len(urls) == 0 {
		return c, nil, fmt.Errorf("no URLs in %s", c.URLsFile)
	}
	return c, urls, nil
}

func runCite(cmd *cobra.Command, args []string) error {
	c, urls, err := iscaConfig(cmd, args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("output") {
		c.Output.Path, _ = cmd.Flags().GetString("output")
	}

	out, err := sink.Open(c.Output, "citation", types.CitationColumns)
	if err != nil {
		return err
	}
	defer out.Close()

	scraper, err := isca.NewCitationScraper(c, log)
	if err != nil {
		return err
	}
	sum, err := scraper.Run(cmd.Context(), urls, out)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d citation(s) failed", sum.Failed)
	}
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	c, urls, err := iscaConfig(cmd, args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("pdf-dir") {
		c.PDFDir, _ = cmd.Flags().GetString("pdf-dir")
	}

	d := isca.NewDownloader(c, httputil.NewClient(c.HTTPConfig, log), log)
	sum, err := d.Run(cmd.Context(), urls)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed download", sum.Failed)
	}
	return nil
}
