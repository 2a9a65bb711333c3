package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telnovia-org/analytics/dataset"
)

// ============================================================================
// EXECUTOR TESTS
// ============================================================================

func salesTable(t *testing.T) *dataset.Table {
	t.Helper()
	table, err := dataset.FromRows(
		[]string{"product", "region", "sales", "units"},
		[][]string{
			{"Widget", "North", "100", "10"},
			{"Gadget", "South", "250.5", "5"},
			{"Widget", "South", "150", "8"},
			{"Doohickey", "North", "80", "2"},
			{"Gadget", "North", "90", "1"},
			{"Widget", "East", "50", "4"},
			{"Doohickey", "East", "120", "6"},
			{"Gadget", "East", "60", "3"},
		},
	)
	require.NoError(t, err)
	return table
}

func TestExecuteGroupBySum(t *testing.T) {
	reply := Execute("df.group_by('product').agg(pl.sum('sales'))", salesTable(t))

	require.Contains(t, reply, "product")
	require.Contains(t, reply, "sales")
	require.Contains(t, reply, "Widget")
	require.Contains(t, reply, "300")
	require.Contains(t, reply, "Gadget")
	require.Contains(t, reply, "400.5")
	require.Contains(t, reply, "Doohickey")
	require.Contains(t, reply, "200")
}

func TestGroupByPreservesFirstAppearanceOrder(t *testing.T) {
	plan, err := Parse("df.group_by('product').agg(pl.sum('sales'))")
	require.NoError(t, err)

	result, err := plan.Run(salesTable(t))
	require.NoError(t, err)
	require.Equal(t, 3, result.NumRows())

	products, _ := result.Column("product")
	require.Equal(t, "Widget", products.String(0))
	require.Equal(t, "Gadget", products.String(1))
	require.Equal(t, "Doohickey", products.String(2))

	sums, _ := result.Column("sales")
	v, _ := sums.Float(1)
	require.InDelta(t, 400.5, v, 1e-9)
}

func TestGroupByCountYieldsIntegers(t *testing.T) {
	plan, err := Parse("df.group_by('product').agg(pl.len(), pl.count('units'))")
	require.NoError(t, err)

	result, err := plan.Run(salesTable(t))
	require.NoError(t, err)
	require.Equal(t, 3, result.NumRows())

	counts, ok := result.Column("len")
	require.True(t, ok)
	require.Equal(t, dataset.TypeInteger, counts.Type)
	require.Equal(t, "3", counts.String(0))

	units, ok := result.Column("units")
	require.True(t, ok)
	require.Equal(t, dataset.TypeInteger, units.Type)
	require.Equal(t, "2", units.String(2))
}

func TestGroupBySumRejectsNonNumericColumn(t *testing.T) {
	plan, err := Parse("df.group_by('product').agg(pl.sum('region'))")
	require.NoError(t, err)

	_, err = plan.Run(salesTable(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "non-numeric column 'region'")
}

func TestExecuteScalarAggregate(t *testing.T) {
	require.Equal(t, "900.5", Execute("df.select(pl.sum('sales'))", salesTable(t)))
	require.Equal(t, "4.875", Execute("df.select(pl.mean('units'))", salesTable(t)))
	require.Equal(t, "8", Execute("df.select(pl.len())", salesTable(t)))
	require.Equal(t, "250.5", Execute("df.select(pl.max('sales'))", salesTable(t)))
}

func TestExecuteFilterThenSelect(t *testing.T) {
	plan, err := Parse("df.filter(pl.col('sales') > 100).select('product', 'sales')")
	require.NoError(t, err)

	result, err := plan.Run(salesTable(t))
	require.NoError(t, err)
	require.Equal(t, 3, result.NumRows())
	require.Equal(t, []string{"product", "sales"}, result.ColumnNames())
}

func TestExecuteStringFilter(t *testing.T) {
	plan, err := Parse("df.filter(pl.col('region') == 'North')")
	require.NoError(t, err)

	result, err := plan.Run(salesTable(t))
	require.NoError(t, err)
	require.Equal(t, 3, result.NumRows())
}

func TestExecuteBooleanFilterAcceptsSourceSpellings(t *testing.T) {
	table, err := dataset.FromRows(
		[]string{"product", "active"},
		[][]string{
			{"Widget", "Yes"},
			{"Gadget", "No"},
			{"Doohickey", "Yes"},
		},
	)
	require.NoError(t, err)

	plan, err := Parse("df.filter(pl.col('active') == True)")
	require.NoError(t, err)

	result, err := plan.Run(table)
	require.NoError(t, err)
	require.Equal(t, 2, result.NumRows())

	products, _ := result.Column("product")
	require.Equal(t, "Widget", products.String(0))
	require.Equal(t, "Doohickey", products.String(1))
}

func TestExecuteSortDescendingHead(t *testing.T) {
	plan, err := Parse("df.sort('sales', descending=True).head(3)")
	require.NoError(t, err)

	result, err := plan.Run(salesTable(t))
	require.NoError(t, err)
	require.Equal(t, 3, result.NumRows())

	sales, _ := result.Column("sales")
	v0, _ := sales.Float(0)
	v2, _ := sales.Float(2)
	require.InDelta(t, 250.5, v0, 1e-9)
	require.InDelta(t, 120, v2, 1e-9)
}

func TestExecuteHeadDefault(t *testing.T) {
	plan, err := Parse("df.head()")
	require.NoError(t, err)

	result, err := plan.Run(salesTable(t))
	require.NoError(t, err)
	require.Equal(t, 5, result.NumRows())
}

func TestExecuteDescribe(t *testing.T) {
	plan, err := Parse("df.describe()")
	require.NoError(t, err)

	result, err := plan.Run(salesTable(t))
	require.NoError(t, err)
	require.Equal(t, []string{"statistic", "sales", "units"}, result.ColumnNames())
	require.Equal(t, 5, result.NumRows())

	stats, _ := result.Column("statistic")
	require.Equal(t, "count", stats.String(0))
	require.Equal(t, "max", stats.String(4))

	sales, _ := result.Column("sales")
	maxSales, _ := sales.Float(4)
	require.InDelta(t, 250.5, maxSales, 1e-9)

	_, err = Parse("df.describe(5)")
	require.Error(t, err)
}

func TestExecuteSentinelShortCircuits(t *testing.T) {
	require.Equal(t, FailureSentinel, Execute(FailureSentinel, salesTable(t)))

	// Sentinel embedded in fenced or chatty output still short-circuits.
	wrapped := "Sorry, I could not build a query.\nERROR: Query cannot be answered."
	require.Equal(t, FailureSentinel, Execute(wrapped, salesTable(t)))
}

func TestExecuteConvertsFailuresToReplies(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"unknown method", "df.explode('tags')"},
		{"unknown column", "df.select('missing')"},
		{"numeric literal on string column", "df.filter(pl.col('product') > 5)"},
		{"sum of string column", "df.group_by('region').agg(pl.sum('product'))"},
		{"arbitrary code", "__import__('os').system('id')"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reply := Execute(tc.expr, salesTable(t))
			require.True(t, strings.HasPrefix(reply, "Error executing generated code:"), "got reply %q", reply)
		})
	}
}

func TestExecuteRendersMarkdownTable(t *testing.T) {
	reply := Execute("df.select('product', 'sales').head(2)", salesTable(t))
	lines := strings.Split(reply, "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	require.Contains(t, lines[0], "product")
	for _, line := range lines {
		require.True(t, strings.HasPrefix(line, "|"), "line %q should start with '|'", line)
	}
}

func TestRenderEmptyResult(t *testing.T) {
	plan, err := Parse("df.filter(pl.col('sales') > 99999)")
	require.NoError(t, err)

	result, err := plan.Run(salesTable(t))
	require.NoError(t, err)
	require.Equal(t, 0, result.NumRows())
}
