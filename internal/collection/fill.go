package collection

import (
	"strings"

	"github.com/couchcryptid/tctrack/internal/domain"
)

// FillMissing fills missing values of column from the nearest present value
// within each group of records sharing groupBy, forward in key order first
// and then backward. Records that do not declare column are left alone.
func FillMissing(c *Collection, column string, groupBy ...string) *Collection {
	records := c.Records()

	groups := make(map[string][]int)
	var order []string
	for i, r := range records {
		if !r.Has(column) {
			continue
		}
		k := groupKey(r, groupBy)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	for _, k := range order {
		idx := groups[k]
		fillPass(records, idx, column)
		reversed := make([]int, len(idx))
		for i, j := range idx {
			reversed[len(idx)-1-i] = j
		}
		fillPass(records, reversed, column)
	}

	out := *c
	out.records = records
	out.summary = c.summary.clone()
	return &out
}

func fillPass(records []domain.Record, idx []int, column string) {
	var last domain.Value
	have := false
	for _, i := range idx {
		v := records[i].Get(column)
		if !v.Missing {
			last, have = v, true
			continue
		}
		if have && v.Err == nil {
			records[i] = records[i].With(column, last)
		}
	}
}

func groupKey(r domain.Record, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = r.Get(c).String()
	}
	return strings.Join(parts, "\x1f")
}
