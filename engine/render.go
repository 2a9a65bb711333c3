package engine

import (
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/telnovia-org/analytics/dataset"
)

// ============================================================================
// RENDERING — Result table → reply text
// ============================================================================

// Render converts an execution result into reply text: a markdown table for
// tabular results, the bare value for a 1x1 scalar result.
func Render(t *dataset.Table) string {
	if t.NumCols() == 0 {
		return "(empty result)"
	}
	if t.IsScalar() {
		return t.ScalarString()
	}
	return MarkdownTable(t)
}

// MarkdownTable renders a table as a markdown-style text table with a header
// row and no row index column.
func MarkdownTable(t *dataset.Table) string {
	var b strings.Builder

	w := tablewriter.NewWriter(&b)
	w.SetHeader(t.ColumnNames())
	w.SetAutoFormatHeaders(false)
	w.SetAutoWrapText(false)
	w.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	w.SetCenterSeparator("|")

	for i := 0; i < t.NumRows(); i++ {
		row := make([]string, t.NumCols())
		for j, c := range t.Columns() {
			row[j] = c.String(i)
		}
		w.Append(row)
	}
	w.Render()

	return strings.TrimRight(b.String(), "\n")
}
