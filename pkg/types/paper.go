// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-harvest tools.
// Records flow from the site scrapers into a Sink; configuration structs are
// built once at start and passed down by value.
package types

import (
	"strings"
	"time"
)

// Record is one harvested row. Key names the crawlable unit the row was
// produced from and is the de-duplication key for every Sink.
type Record interface {
	Key() string

	// Values returns the row in the column order of the record kind's header.
	Values() []string
}

// PaperColumns is the CSV header for Paper rows.
var PaperColumns = []string{"id", "title", "abstract", "date"}

// Paper holds the metadata scraped from an IEEE Xplore document page.
type Paper struct {
	// ID is the IEEE document number (e.g. "9054262").
	ID string `json:"id" yaml:"id"`

	// Title is the document title.
	Title string `json:"title" yaml:"title"`

	// Abstract is the abstract text with whitespace collapsed.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Date is the "Date Added to IEEE Xplore" value as displayed.
	Date string `json:"date" yaml:"date"`
}

func (p Paper) Key() string { return p.ID }

func (p Paper) Values() []string {
	return []string{p.ID, p.Title, p.Abstract, p.Date}
}

// PaperMetadataColumns is the CSV header for PaperMetadata rows. Title and
// abstract sit at the same positions as in PaperColumns.
var PaperMetadataColumns = []string{"id", "title", "abstract", "keywords", "links", "citation"}

// PaperMetadata holds what the "Cite This" dialog of an IEEE Xplore
// document page shows when the abstract is included.
type PaperMetadata struct {
	ID       string `json:"id" yaml:"id"`
	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract" yaml:"abstract"`

	// Keywords is the keyword list as displayed, braces removed.
	Keywords string `json:"keywords" yaml:"keywords"`

	// Links joins the dialog's hyperlinks with ";".
	Links string `json:"links" yaml:"links"`

	// Citation is the formatted reference line.
	Citation string `json:"citation" yaml:"citation"`
}

func (m PaperMetadata) Key() string { return m.ID }

func (m PaperMetadata) Values() []string {
	return []string{m.ID, m.Title, m.Abstract, m.Keywords, m.Links, m.Citation}
}

// CitationColumns is the CSV header for Citation rows.
var CitationColumns = []string{"URL", "Citation"}

// Citation pairs an ISCA Archive paper page with its citation text.
type Citation struct {
	URL  string `json:"url" yaml:"url"`
	Text string `json:"citation" yaml:"citation"`
}

func (c Citation) Key() string { return c.URL }

func (c Citation) Values() []string {
	return []string{c.URL, c.Text}
}

// CollapseSpace joins the whitespace-separated fields of s with single spaces.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Download records where a paper PDF came from. It is written as a YAML
// sidecar next to the PDF.
type Download struct {
	Page         string    `json:"page" yaml:"page"`
	PDFURL       string    `json:"pdf_url" yaml:"pdf_url"`
	File         string    `json:"file" yaml:"file"`
	Bytes        int64     `json:"bytes" yaml:"bytes"`
	DownloadedAt time.Time `json:"downloaded_at" yaml:"downloaded_at"`
}
