// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package report

import (
	"fmt"
	"slices"

	"github.com/pdiddy/paper-harvest/pkg/types"
)

// DuplicateColumn is appended to the header by FlagDuplicates.
const DuplicateColumn = "duplicate"

// Group lists the data rows sharing one abstract.
type Group struct {
	Abstract string

	// Rows are 1-based data row numbers in input order.
	Rows []int
}

// FlagDuplicates returns a copy of the rows with a DuplicateColumn value
// of "yes" on every row whose column value appeared on an earlier row and
// "no" elsewhere. Empty values are never flagged. groups holds every value
// seen more than once, in order of first appearance.
func FlagDuplicates(header []string, rows [][]string, column string) (outHeader []string, out [][]string, groups []Group, err error) {
	col := slices.Index(header, column)
	if col < 0 {
		return nil, nil, nil, fmt.Errorf("column %q not in header %v", column, header)
	}

	outHeader = append(slices.Clone(header), DuplicateColumn)
	out = make([][]string, len(rows))

	index := make(map[string]int) // abstract → position in all
	var all []Group
	for i, row := range rows {
		value := types.CollapseSpace(field(row, col))
		flag := "no"
		if value != "" {
			if g, ok := index[value]; ok {
				all[g].Rows = append(all[g].Rows, i+1)
				flag = "yes"
			} else {
				index[value] = len(all)
				all = append(all, Group{Abstract: value, Rows: []int{i + 1}})
			}
		}
		padded := make([]string, len(header), len(header)+1)
		copy(padded, row)
		out[i] = append(padded, flag)
	}

	for _, g := range all {
		if len(g.Rows) > 1 {
			groups = append(groups, g)
		}
	}
	return outHeader, out, groups, nil
}
