// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"strings"
	"unicode"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

// Document formatting shared by the generated reports.
const (
	reportFont      = "Times New Roman"
	reportSizePt    = 12
	headingSizePt   = 14
	bodyLineSpacing = 1.5
)

// Paper row columns, in types.PaperColumns order.
const (
	colTitle    = 1
	colAbstract = 2
)

// Duplicate is a paper row left out of the abstract summary because an
// earlier row has the same title and abstract.
type Duplicate struct {
	// Row and FirstRow are 1-based data row numbers.
	Row      int
	FirstRow int
	Title    string
}

// Abstracts builds the abstract summary from paper rows: a centered bold
// heading followed by each paper's title in bold and its abstract. Rows
// repeating an earlier (title, abstract) pair are skipped and returned.
func Abstracts(rows [][]string, heading string) (*Document, []Duplicate) {
	doc := newDocument(heading)

	seen := make(map[string]int) // dedup key → first row number
	var dups []Duplicate
	for i, row := range rows {
		title := types.CollapseSpace(field(row, colTitle))
		abstract := types.CollapseSpace(field(row, colAbstract))

		key := normalizeTitle(title) + "\x00" + abstract
		if first, ok := seen[key]; ok {
			dups = append(dups, Duplicate{Row: i + 1, FirstRow: first, Title: title})
			continue
		}
		seen[key] = i + 1

		doc.Add(Paragraph{
			Runs:         []Run{{Text: title, Bold: true}},
			SpaceAfterPt: 6,
		})
		doc.Add(Paragraph{
			Runs:         []Run{{Text: abstract}},
			SpaceAfterPt: 12,
			LineSpacing:  bodyLineSpacing,
		})
	}
	return doc, dups
}

func newDocument(heading string) *Document {
	doc := &Document{Font: reportFont, SizePt: reportSizePt}
	doc.Add(Paragraph{
		Runs:         []Run{{Text: heading, Bold: true, SizePt: headingSizePt}},
		Align:        AlignCenter,
		SpaceAfterPt: 12,
	})
	return doc
}

func field(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// normalizeTitle lowercases a title and strips punctuation so that the
// same paper listed with different capitalization compares equal.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
