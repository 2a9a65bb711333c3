package dataset

import (
	"fmt"
	"strconv"
	"strings"
)

// ============================================================================
// TABLE — In-memory columnar dataset
// ============================================================================
// A Table holds one uploaded dataset for the duration of a single query.
// Columns keep both the raw text cells and, for numeric columns, parsed
// float64 values plus a null mask. Tables are read-only once built — engine
// operations derive new Tables instead of mutating the source.
// ============================================================================

// Type is the semantic type tag of a column.
type Type string

const (
	TypeInteger     Type = "integer"
	TypeFloat       Type = "float"
	TypeString      Type = "string"
	TypeBoolean     Type = "boolean"
	TypeDatetime    Type = "datetime"
	TypeCategorical Type = "categorical"
	TypeUnknown     Type = "unknown"
)

// IsNumeric reports whether values of this type carry a usable float64.
func (t Type) IsNumeric() bool {
	return t == TypeInteger || t == TypeFloat
}

// Column is a single named column with typed cell access.
type Column struct {
	Name string
	Type Type

	raw  []string
	nums []float64
	null []bool
}

// Len returns the number of cells in the column.
func (c *Column) Len() int { return len(c.raw) }

// IsNull reports whether cell i is missing.
func (c *Column) IsNull(i int) bool {
	if i < 0 || i >= len(c.null) {
		return true
	}
	return c.null[i]
}

// String returns the display form of cell i.
// Numeric columns format from the parsed value so "1,200" renders as "1200".
func (c *Column) String(i int) string {
	if c.IsNull(i) {
		return ""
	}
	if c.Type.IsNumeric() {
		return formatFloat(c.nums[i])
	}
	return c.raw[i]
}

// Float returns the numeric value of cell i. ok is false for nulls and
// non-numeric columns.
func (c *Column) Float(i int) (float64, bool) {
	if c.IsNull(i) || !c.Type.IsNumeric() {
		return 0, false
	}
	return c.nums[i], true
}

// NullCount returns the number of missing cells.
func (c *Column) NullCount() int {
	n := 0
	for _, isNull := range c.null {
		if isNull {
			n++
		}
	}
	return n
}

// UniqueCount returns the number of distinct non-null display values.
func (c *Column) UniqueCount() int {
	seen := make(map[string]struct{})
	for i := range c.raw {
		if !c.IsNull(i) {
			seen[c.String(i)] = struct{}{}
		}
	}
	return len(seen)
}

// Floats returns all non-null numeric values in cell order.
func (c *Column) Floats() []float64 {
	out := make([]float64, 0, len(c.nums))
	for i := range c.nums {
		if v, ok := c.Float(i); ok {
			out = append(out, v)
		}
	}
	return out
}

// TakeRows builds a new column containing the given rows, in order.
func (c *Column) TakeRows(indices []int) *Column {
	out := &Column{
		Name: c.Name,
		Type: c.Type,
		raw:  make([]string, 0, len(indices)),
		nums: make([]float64, 0, len(indices)),
		null: make([]bool, 0, len(indices)),
	}
	for _, i := range indices {
		out.raw = append(out.raw, c.raw[i])
		out.nums = append(out.nums, c.nums[i])
		out.null = append(out.null, c.null[i])
	}
	return out
}

// NewFloatColumn builds a numeric column from computed values.
func NewFloatColumn(name string, typ Type, values []float64) *Column {
	c := &Column{Name: name, Type: typ}
	for _, v := range values {
		c.raw = append(c.raw, formatFloat(v))
		c.nums = append(c.nums, v)
		c.null = append(c.null, false)
	}
	return c
}

// NewStringColumn builds a text column from string values.
func NewStringColumn(name string, typ Type, values []string) *Column {
	c := &Column{Name: name, Type: typ}
	for _, v := range values {
		c.raw = append(c.raw, v)
		c.nums = append(c.nums, 0)
		c.null = append(c.null, false)
	}
	return c
}

// ============================================================================
// TABLE
// ============================================================================

// Table is an ordered collection of equally sized columns.
type Table struct {
	cols  []*Column
	index map[string]int
}

// NewTable assembles a table from pre-built columns.
// All columns must have the same length; duplicate names keep the first.
func NewTable(cols ...*Column) *Table {
	t := &Table{index: make(map[string]int)}
	for _, c := range cols {
		if _, exists := t.index[c.Name]; exists {
			continue
		}
		t.index[c.Name] = len(t.cols)
		t.cols = append(t.cols, c)
	}
	return t
}

// NumRows returns the row count (0 for an empty table).
func (t *Table) NumRows() int {
	if len(t.cols) == 0 {
		return 0
	}
	return t.cols[0].Len()
}

// NumCols returns the column count.
func (t *Table) NumCols() int { return len(t.cols) }

// ColumnNames returns column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Columns returns the columns in declaration order.
func (t *Table) Columns() []*Column { return t.cols }

// HasColumn reports whether a column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// TakeRows builds a new table containing the given rows, in order.
func (t *Table) TakeRows(indices []int) *Table {
	cols := make([]*Column, len(t.cols))
	for i, c := range t.cols {
		cols[i] = c.TakeRows(indices)
	}
	return NewTable(cols...)
}

// IsScalar reports whether the table is a single cell.
func (t *Table) IsScalar() bool {
	return t.NumCols() == 1 && t.NumRows() == 1
}

// ScalarString returns the display form of a 1x1 table's only cell.
func (t *Table) ScalarString() string {
	if !t.IsScalar() {
		return ""
	}
	return t.cols[0].String(0)
}

// ============================================================================
// CONSTRUCTION FROM RAW ROWS
// ============================================================================

// FromRows builds a typed table from headers plus raw string rows.
// Column types are inferred from the cell values (see infer.go).
// Short rows are padded with nulls; extra cells are dropped.
func FromRows(headers []string, rows [][]string) (*Table, error) {
	if len(headers) == 0 {
		return nil, fmt.Errorf("dataset has no columns")
	}

	cols := make([]*Column, len(headers))
	for j, name := range headers {
		c := &Column{Name: strings.TrimSpace(name)}
		for _, row := range rows {
			var cell string
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			if isNullToken(cell) {
				c.raw = append(c.raw, "")
				c.nums = append(c.nums, 0)
				c.null = append(c.null, true)
				continue
			}
			c.raw = append(c.raw, cell)
			c.nums = append(c.nums, 0)
			c.null = append(c.null, false)
		}
		cols[j] = c
	}

	for _, c := range cols {
		inferColumnType(c)
	}

	return NewTable(cols...), nil
}

// isNullToken matches the empty / null spellings treated as missing values.
func isNullToken(s string) bool {
	switch s {
	case "", "null", "NULL", "N/A", "n/a", "NaN":
		return true
	}
	return false
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) && v < 1e15 && v > -1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
