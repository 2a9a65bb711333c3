package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ============================================================================
// LOADING + TYPE INFERENCE TESTS
// ============================================================================

// Sample retail sales CSV
var salesCSV = []byte(`product,region,sales,units,in_stock,order_date
Widget,North,100,10,true,2026-01-05
Gadget,South,250.5,5,false,2026-01-06
Widget,South,150,8,true,2026-01-07
Doohickey,North,80,2,true,2026-01-08
Gadget,North,90,1,false,2026-01-09
Widget,East,50,4,true,2026-01-10
Doohickey,East,120,6,true,2026-01-11
Gadget,East,60,3,false,2026-01-12
`)

func loadSales(t *testing.T) *Table {
	t.Helper()
	table, err := ReadCSV(bytes.NewReader(salesCSV))
	require.NoError(t, err)
	return table
}

func TestReadCSVInfersTypes(t *testing.T) {
	table := loadSales(t)
	require.Equal(t, 8, table.NumRows())
	require.Equal(t, 6, table.NumCols())

	want := map[string]Type{
		"product":    TypeCategorical,
		"region":     TypeCategorical,
		"sales":      TypeFloat,
		"units":      TypeInteger,
		"in_stock":   TypeBoolean,
		"order_date": TypeDatetime,
	}
	for name, typ := range want {
		c, ok := table.Column(name)
		require.True(t, ok, "missing column %s", name)
		require.Equal(t, typ, c.Type, "column %s", name)
	}
}

func TestReadCSVCurrencyAndThousands(t *testing.T) {
	csv := []byte("amount\n\"$1,234.56\"\n€40\n-£3.20\n99\n")
	table, err := ReadCSV(bytes.NewReader(csv))
	require.NoError(t, err)

	c, _ := table.Column("amount")
	require.Equal(t, TypeFloat, c.Type)

	v, ok := c.Float(0)
	require.True(t, ok)
	require.InDelta(t, 1234.56, v, 1e-9)

	v, ok = c.Float(2)
	require.True(t, ok)
	require.InDelta(t, -3.20, v, 1e-9)
}

func TestBooleanCellsCanonicalized(t *testing.T) {
	csv := []byte("name,active\nana,Yes\nbob,no\ncara,TRUE\ndan,false\neve,maybe\n")
	table, err := ReadCSV(bytes.NewReader(csv))
	require.NoError(t, err)

	col, ok := table.Column("active")
	require.True(t, ok)
	require.Equal(t, TypeBoolean, col.Type)
	require.Equal(t, "true", col.String(0))
	require.Equal(t, "false", col.String(1))
	require.Equal(t, "true", col.String(2))
	require.Equal(t, "false", col.String(3))
	require.True(t, col.IsNull(4))
}

func TestNullTokensBecomeMissing(t *testing.T) {
	csv := []byte("score\n10\nN/A\n20\nnull\n30\n")
	table, err := ReadCSV(bytes.NewReader(csv))
	require.NoError(t, err)

	c, _ := table.Column("score")
	require.Equal(t, TypeInteger, c.Type)
	require.Equal(t, 2, c.NullCount())
	require.Equal(t, []float64{10, 20, 30}, c.Floats())
}

func TestMostlyNumericColumnDropsStrays(t *testing.T) {
	// 4 of 5 values parse; over the match threshold the column is numeric
	// and the stray cell becomes a null.
	csv := []byte("price\n10\n20\nunknown\n30\n40\n")
	table, err := ReadCSV(bytes.NewReader(csv))
	require.NoError(t, err)

	c, _ := table.Column("price")
	require.True(t, c.Type.IsNumeric())
	require.Equal(t, 1, c.NullCount())
}

func TestReadJSONSortsColumns(t *testing.T) {
	data := []byte(`[
		{"name": "alpha", "value": 1},
		{"value": 2, "name": "beta", "extra": true}
	]`)
	table, err := ReadJSON(data)
	require.NoError(t, err)
	require.Equal(t, []string{"extra", "name", "value"}, table.ColumnNames())
	require.Equal(t, 2, table.NumRows())

	extra, _ := table.Column("extra")
	require.True(t, extra.IsNull(0), "absent key should read as null")
}

func TestLoadFileRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	_, err := LoadFile(path)
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadFileCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, salesCSV, 0o644))

	table, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, 8, table.NumRows())
}

// ============================================================================
// SCHEMA TESTS
// ============================================================================

func TestExtractSchemaString(t *testing.T) {
	table, err := FromRows(
		[]string{"product", "sales"},
		[][]string{{"Widget", "100"}, {"Gadget", "250.5"}},
	)
	require.NoError(t, err)

	schema := ExtractSchema(table)
	require.True(t, schema.Has("product"))
	require.False(t, schema.Has("missing"))
	require.Equal(t, "{'product': 'string', 'sales': 'float'}", schema.String())
}

func TestScalarString(t *testing.T) {
	table := NewTable(NewFloatColumn("total", TypeFloat, []float64{900.5}))
	require.True(t, table.IsScalar())
	require.Equal(t, "900.5", table.ScalarString())

	whole := NewTable(NewFloatColumn("count", TypeInteger, []float64{42}))
	require.Equal(t, "42", whole.ScalarString())
}
