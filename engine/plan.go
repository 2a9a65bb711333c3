package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/telnovia-org/analytics/dataset"
)

// ============================================================================
// PLAN — Enumerated operation set for synthesized expressions
// ============================================================================
// The executor never evaluates model-generated text as code. The parser
// turns an expression into a Plan of whitelisted operations, and each
// operation only reads the table through the dataset package. Anything the
// parser cannot map onto these operations is a hard parse error.
// ============================================================================

// Plan is an ordered pipeline of table operations.
type Plan struct {
	Ops []Op
}

// Op is a single whitelisted table transformation.
type Op interface {
	Apply(t *dataset.Table) (*dataset.Table, error)
	describe() string
}

// Run applies every operation in order against a source table.
func (p *Plan) Run(t *dataset.Table) (*dataset.Table, error) {
	out := t
	for _, op := range p.Ops {
		var err error
		out, err = op.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op.describe(), err)
		}
	}
	return out, nil
}

// ============================================================================
// EXPRESSIONS
// ============================================================================

// AggFunc is a whitelisted aggregation function.
type AggFunc string

const (
	AggSum   AggFunc = "sum"
	AggMean  AggFunc = "mean"
	AggMin   AggFunc = "min"
	AggMax   AggFunc = "max"
	AggCount AggFunc = "count"
	AggLen   AggFunc = "len"
)

// needsColumn reports whether the aggregation requires a named column.
func (f AggFunc) needsColumn() bool {
	return f != AggCount && f != AggLen
}

// needsNumeric reports whether the aggregation only works on numeric columns.
func (f AggFunc) needsNumeric() bool {
	return f == AggSum || f == AggMean || f == AggMin || f == AggMax
}

// AggExpr is one aggregation, e.g. pl.sum('sales').
type AggExpr struct {
	Func   AggFunc
	Column string
}

// OutputName is the result column name, matching polars semantics:
// pl.sum('sales') keeps the name 'sales', pl.len() becomes 'len'.
func (a AggExpr) OutputName() string {
	if a.Column != "" {
		return a.Column
	}
	return string(a.Func)
}

// CmpOp is a whitelisted comparison operator for filter predicates.
type CmpOp string

const (
	CmpEq CmpOp = "=="
	CmpNe CmpOp = "!="
	CmpGt CmpOp = ">"
	CmpGe CmpOp = ">="
	CmpLt CmpOp = "<"
	CmpLe CmpOp = "<="
)

// Literal is a constant operand in a filter predicate.
type Literal struct {
	IsNumber bool
	Number   float64
	IsBool   bool
	Bool     bool
	Text     string
}

func (l Literal) String() string {
	switch {
	case l.IsNumber:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", l.Number), "0"), ".")
	case l.IsBool:
		return fmt.Sprintf("%t", l.Bool)
	default:
		return fmt.Sprintf("'%s'", l.Text)
	}
}

// ============================================================================
// SELECT
// ============================================================================

// SelectItem is either a plain column reference or an aggregation.
type SelectItem struct {
	Column string
	Agg    *AggExpr
}

// SelectOp projects columns, or computes whole-table aggregations when
// every item is an aggregation (df.select(pl.sum('sales')) → a 1x1 table).
type SelectOp struct {
	Items []SelectItem
}

func (op SelectOp) describe() string { return "select" }

func (op SelectOp) Apply(t *dataset.Table) (*dataset.Table, error) {
	if len(op.Items) == 0 {
		return nil, fmt.Errorf("no columns given")
	}

	allAggs := true
	for _, item := range op.Items {
		if item.Agg == nil {
			allAggs = false
			break
		}
	}
	if allAggs {
		cols := make([]*dataset.Column, 0, len(op.Items))
		for _, item := range op.Items {
			c, err := computeAggColumn(t, allRows(t), *item.Agg)
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
		}
		return dataset.NewTable(cols...), nil
	}

	cols := make([]*dataset.Column, 0, len(op.Items))
	for _, item := range op.Items {
		if item.Agg != nil {
			return nil, fmt.Errorf("cannot mix plain columns and aggregations in select")
		}
		c, ok := t.Column(item.Column)
		if !ok {
			return nil, fmt.Errorf("unknown column '%s'", item.Column)
		}
		cols = append(cols, c)
	}
	return dataset.NewTable(cols...), nil
}

// ============================================================================
// FILTER
// ============================================================================

// FilterOp keeps rows where a column satisfies a comparison with a literal.
type FilterOp struct {
	Column string
	Op     CmpOp
	Value  Literal
}

func (op FilterOp) describe() string { return "filter" }

func (op FilterOp) Apply(t *dataset.Table) (*dataset.Table, error) {
	c, ok := t.Column(op.Column)
	if !ok {
		return nil, fmt.Errorf("unknown column '%s'", op.Column)
	}

	numeric := c.Type.IsNumeric() && op.Value.IsNumber
	if op.Value.IsNumber && !c.Type.IsNumeric() {
		return nil, fmt.Errorf("column '%s' is not numeric", op.Column)
	}

	var indices []int
	for i := 0; i < t.NumRows(); i++ {
		if c.IsNull(i) {
			continue
		}
		var keep bool
		if numeric {
			v, _ := c.Float(i)
			keep = compareFloat(v, op.Op, op.Value.Number)
		} else {
			keep = compareString(c.String(i), op.Op, op.Value)
		}
		if keep {
			indices = append(indices, i)
		}
	}
	return t.TakeRows(indices), nil
}

func compareFloat(v float64, op CmpOp, target float64) bool {
	switch op {
	case CmpEq:
		return v == target
	case CmpNe:
		return v != target
	case CmpGt:
		return v > target
	case CmpGe:
		return v >= target
	case CmpLt:
		return v < target
	case CmpLe:
		return v <= target
	}
	return false
}

func compareString(v string, op CmpOp, lit Literal) bool {
	target := lit.Text
	if lit.IsBool {
		target = fmt.Sprintf("%t", lit.Bool)
		v = strings.ToLower(v)
	}
	switch op {
	case CmpEq:
		return v == target
	case CmpNe:
		return v != target
	case CmpGt:
		return v > target
	case CmpGe:
		return v >= target
	case CmpLt:
		return v < target
	case CmpLe:
		return v <= target
	}
	return false
}

// ============================================================================
// GROUP + AGGREGATE
// ============================================================================

// GroupAggOp groups rows by one or more columns and computes aggregations
// per group. Group order is first appearance, matching the source row order.
type GroupAggOp struct {
	By   []string
	Aggs []AggExpr
}

func (op GroupAggOp) describe() string { return "group_by" }

func (op GroupAggOp) Apply(t *dataset.Table) (*dataset.Table, error) {
	if len(op.By) == 0 {
		return nil, fmt.Errorf("no grouping columns given")
	}
	if len(op.Aggs) == 0 {
		return nil, fmt.Errorf("agg requires at least one aggregation")
	}

	byCols := make([]*dataset.Column, len(op.By))
	for i, name := range op.By {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column '%s'", name)
		}
		byCols[i] = c
	}

	// Group rows by the joined key, preserving first-appearance order.
	grouped := make(map[string][]int)
	var order []string
	for i := 0; i < t.NumRows(); i++ {
		parts := make([]string, len(byCols))
		for j, c := range byCols {
			parts[j] = c.String(i)
		}
		key := strings.Join(parts, "\x1f")
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	// Group label columns: one cell per group, taken from its first row.
	outCols := make([]*dataset.Column, 0, len(byCols)+len(op.Aggs))
	for _, c := range byCols {
		firstRows := make([]int, len(order))
		for g, key := range order {
			firstRows[g] = grouped[key][0]
		}
		outCols = append(outCols, c.TakeRows(firstRows))
	}

	// Aggregation columns.
	for _, agg := range op.Aggs {
		values := make([]float64, 0, len(order))
		for _, key := range order {
			v, err := computeAgg(t, grouped[key], agg)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		typ := dataset.TypeFloat
		if !agg.Func.needsColumn() {
			typ = dataset.TypeInteger
		}
		outCols = append(outCols, dataset.NewFloatColumn(agg.OutputName(), typ, values))
	}

	return dataset.NewTable(outCols...), nil
}

// ============================================================================
// SORT
// ============================================================================

// SortOp orders rows by a single column.
type SortOp struct {
	Column     string
	Descending bool
}

func (op SortOp) describe() string { return "sort" }

func (op SortOp) Apply(t *dataset.Table) (*dataset.Table, error) {
	c, ok := t.Column(op.Column)
	if !ok {
		return nil, fmt.Errorf("unknown column '%s'", op.Column)
	}

	indices := allRows(t)
	numeric := c.Type.IsNumeric()
	sort.SliceStable(indices, func(a, b int) bool {
		i, j := indices[a], indices[b]
		var less bool
		if numeric {
			vi, _ := c.Float(i)
			vj, _ := c.Float(j)
			less = vi < vj
		} else {
			less = c.String(i) < c.String(j)
		}
		if op.Descending {
			return !less
		}
		return less
	})
	return t.TakeRows(indices), nil
}

// ============================================================================
// HEAD
// ============================================================================

// HeadOp keeps the first N rows.
type HeadOp struct {
	N int
}

func (op HeadOp) describe() string { return "head" }

func (op HeadOp) Apply(t *dataset.Table) (*dataset.Table, error) {
	n := op.N
	if n <= 0 {
		return nil, fmt.Errorf("row count must be positive")
	}
	if n > t.NumRows() {
		n = t.NumRows()
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return t.TakeRows(indices), nil
}

// ============================================================================
// DESCRIBE
// ============================================================================

// DescribeOp emits summary statistics for the table's numeric columns, one
// statistic per row.
type DescribeOp struct{}

func (op DescribeOp) describe() string { return "describe" }

func (op DescribeOp) Apply(t *dataset.Table) (*dataset.Table, error) {
	var numeric []*dataset.Column
	for _, c := range t.Columns() {
		if c.Type.IsNumeric() {
			numeric = append(numeric, c)
		}
	}
	if len(numeric) == 0 {
		return nil, fmt.Errorf("no numeric columns to describe")
	}

	stats := []string{"count", "null_count", "mean", "min", "max"}
	cols := []*dataset.Column{dataset.NewStringColumn("statistic", dataset.TypeString, stats)}
	for _, c := range numeric {
		vals := c.Floats()
		out := make([]float64, len(stats))
		out[0] = float64(len(vals))
		out[1] = float64(c.NullCount())
		if len(vals) > 0 {
			sum, mn, mx := 0.0, vals[0], vals[0]
			for _, v := range vals {
				sum += v
				if v < mn {
					mn = v
				}
				if v > mx {
					mx = v
				}
			}
			out[2] = sum / float64(len(vals))
			out[3] = mn
			out[4] = mx
		}
		cols = append(cols, dataset.NewFloatColumn(c.Name, dataset.TypeFloat, out))
	}
	return dataset.NewTable(cols...), nil
}

// ============================================================================
// AGGREGATION PRIMITIVES
// ============================================================================

func computeAgg(t *dataset.Table, rows []int, agg AggExpr) (float64, error) {
	if !agg.Func.needsColumn() {
		if agg.Column == "" {
			return float64(len(rows)), nil
		}
		// pl.count('col') counts non-null cells of that column.
		c, ok := t.Column(agg.Column)
		if !ok {
			return 0, fmt.Errorf("unknown column '%s'", agg.Column)
		}
		n := 0
		for _, i := range rows {
			if !c.IsNull(i) {
				n++
			}
		}
		return float64(n), nil
	}

	c, ok := t.Column(agg.Column)
	if !ok {
		return 0, fmt.Errorf("unknown column '%s'", agg.Column)
	}
	if agg.Func.needsNumeric() && !c.Type.IsNumeric() {
		return 0, fmt.Errorf("cannot %s non-numeric column '%s'", agg.Func, agg.Column)
	}

	var sum float64
	count := 0
	first := true
	var min, max float64
	for _, i := range rows {
		v, ok := c.Float(i)
		if !ok {
			continue
		}
		sum += v
		count++
		if first || v < min {
			min = v
		}
		if first || v > max {
			max = v
		}
		first = false
	}

	switch agg.Func {
	case AggSum:
		return sum, nil
	case AggMean:
		if count == 0 {
			return 0, nil
		}
		return sum / float64(count), nil
	case AggMin:
		return min, nil
	case AggMax:
		return max, nil
	default:
		return float64(len(rows)), nil
	}
}

func computeAggColumn(t *dataset.Table, rows []int, agg AggExpr) (*dataset.Column, error) {
	v, err := computeAgg(t, rows, agg)
	if err != nil {
		return nil, err
	}
	typ := dataset.TypeFloat
	if !agg.Func.needsColumn() {
		typ = dataset.TypeInteger
	}
	return dataset.NewFloatColumn(agg.OutputName(), typ, []float64{v}), nil
}

func allRows(t *dataset.Table) []int {
	indices := make([]int, t.NumRows())
	for i := range indices {
		indices[i] = i
	}
	return indices
}
