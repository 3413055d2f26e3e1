// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-harvest/internal/ieee"
	"github.com/pdiddy/paper-harvest/internal/report"
	"github.com/pdiddy/paper-harvest/internal/sink"
	"github.com/pdiddy/paper-harvest/pkg/types"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build documents from the harvested rows",
	Long: `Report turns the crawl and citation outputs into documents: a Word file of
paper titles and abstracts, a numbered Word reference list, and a copy of
the paper rows with repeated abstracts flagged.`,
}

var reportAbstractsCmd = &cobra.Command{
	Use:   "abstracts",
	Short: "Write paper titles and abstracts to a Word document",
	RunE:  runReportAbstracts,
}

var reportReferencesCmd = &cobra.Command{
	Use:   "references",
	Short: "Write the scraped citations as a numbered Word reference list",
	Long: `References reads the ISCA citation output by default. With --source ieee
it reads the IEEE output written with ieee.cite_dialog set.`,
	RunE: runReportReferences,
}

var reportDuplicatesCmd = &cobra.Command{
	Use:   "duplicates",
	Short: "Copy the paper rows with a column flagging repeated abstracts",
	RunE:  runReportDuplicates,
}

func init() {
	for _, c := range []*cobra.Command{reportAbstractsCmd, reportReferencesCmd, reportDuplicatesCmd} {
		c.Flags().String("output", "", "output file (overrides the report setting)")
		reportCmd.AddCommand(c)
	}
	reportReferencesCmd.Flags().String("source", "isca", "citation source: isca or ieee")
	rootCmd.AddCommand(reportCmd)
}

func outputFlag(cmd *cobra.Command, fallback string) string {
	if cmd.Flags().Changed("output") {
		p, _ := cmd.Flags().GetString("output")
		return p
	}
	return fallback
}

// citationRows reads the citation rows of source as (key, citation) pairs.
func citationRows(source string) ([][]string, error) {
	switch source {
	case "isca":
		return sink.ReadAll(cfg.ISCA.Output, "citation", types.CitationColumns)
	case "ieee":
		if !cfg.IEEE.CiteDialog {
			return nil, errors.New("ieee citations need ieee.cite_dialog")
		}
		kind, header := ieee.Records(cfg.IEEE)
		rows, err := sink.ReadAll(cfg.IEEE.Output, kind, header)
		if err != nil {
			return nil, err
		}
		return report.CitationRows(header, rows, "id", "citation")
	default:
		return nil, fmt.Errorf("unknown citation source %q", source)
	}
}

func runReportAbstracts(cmd *cobra.Command, args []string) error {
	kind, header := ieee.Records(cfg.IEEE)
	rows, err := sink.ReadAll(cfg.IEEE.Output, kind, header)
	if err != nil {
		return err
	}
	doc, dups := report.Abstracts(rows, cfg.Report.AbstractsHeading)
	for _, d := range dups {
		log.WithFields(logrus.Fields{
			"row":       d.Row,
			"first_row": d.FirstRow,
			"title":     d.Title,
		}).Warn("duplicate paper left out")
	}

	path := outputFlag(cmd, cfg.Report.AbstractsDoc)
	if err := report.Save(path, doc); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":       path,
		"papers":     humanize.Comma(int64(len(rows) - len(dups))),
		"duplicates": len(dups),
	}).Info("wrote abstracts")
	return nil
}

func runReportReferences(cmd *cobra.Command, args []string) error {
	source, _ := cmd.Flags().GetString("source")
	rows, err := citationRows(source)
	if err != nil {
		return err
	}
	doc, missing := report.References(rows, cfg.Report.ReferencesHeading)
	for _, n := range missing {
		log.WithField("reference", n).Warn("citation missing, placeholder written")
	}

	path := outputFlag(cmd, cfg.Report.ReferencesDoc)
	if err := report.Save(path, doc); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":       path,
		"references": humanize.Comma(int64(len(rows))),
		"missing":    len(missing),
	}).Info("wrote references")
	return nil
}

func runReportDuplicates(cmd *cobra.Command, args []string) error {
	kind, columns := ieee.Records(cfg.IEEE)
	rows, err := sink.ReadAll(cfg.IEEE.Output, kind, columns)
	if err != nil {
		return err
	}
	header, flagged, groups, err := report.FlagDuplicates(columns, rows, "abstract")
	if err != nil {
		return err
	}
	repeats := 0
	for _, g := range groups {
		repeats += len(g.Rows) - 1
		log.WithField("rows", g.Rows).Info("repeated abstract")
	}

	path := outputFlag(cmd, cfg.Report.DuplicatesCSV)
	if err := report.WriteCSV(path, header, flagged); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":    path,
		"rows":    humanize.Comma(int64(len(rows))),
		"groups":  len(groups),
		"repeats": repeats,
	}).Info("flagged duplicate abstracts")
	return nil
}
