package report

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MissingCitation stands in for a reference whose citation was not scraped.
const MissingCitation = "[citation unavailable]"

const colCitation = 1

// References builds a numbered reference list from citation rows. Each
// entry is "[n] citation" with the number in bold. A row without citation
// text keeps its number, shows MissingCitation, and is reported in missing.
func References(rows [][]string, heading string) (doc *Document, missing []int) {
	doc = newDocument(heading)
	for i, row := range rows {
		n := i + 1
		text := strings.TrimSpace(field(row, colCitation))
		if text == "" {
			text = MissingCitation
			missing = append(missing, n)
		}
		doc.Add(Paragraph{
			Runs: []Run{
				{Text: "[" + strconv.Itoa(n) + "] ", Bold: true},
				{Text: text},
			},
			SpaceAfterPt: 6,
			LineSpacing:  bodyLineSpacing,
		})
	}
	return doc, missing
}

// CitationRows picks the key and citation columns out of rows with the
// given header, in the shape References reads.
func CitationRows(header []string, rows [][]string, key, citation string) ([][]string, error) {
	k, c := slices.Index(header, key), slices.Index(header, citation)
	if k < 0 || c < 0 {
		return nil, fmt.Errorf("columns %q and %q not both in header %v", key, citation, header)
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = []string{field(row, k), field(row, c)}
	}
	return out, nil
}
