package dataset

import (
	"fmt"
	"math"
	"sort"
)

// ============================================================================
// DATA QUALITY — Health report generated at upload time
// ============================================================================
// A pure column-statistics pass: missing values, cardinality and variance
// warnings, and IQR-based outlier detection for numeric columns. The report
// is stored on the notebook and returned to the client alongside it.
// ============================================================================

// HealthReport summarizes dataset quality per column.
type HealthReport struct {
	Columns []ColumnReport `json:"columns"`
}

// ColumnReport is the quality summary of one column.
type ColumnReport struct {
	Name          string        `json:"name"`
	Type          Type          `json:"dtype"`
	MissingValues MissingValues `json:"missing_values"`
	Warnings      []string      `json:"warnings"`
	AnomalyReport AnomalyReport `json:"anomaly_report"`
}

// MissingValues counts null cells.
type MissingValues struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// AnomalyReport flags outliers detected in numeric columns.
type AnomalyReport struct {
	Detected bool   `json:"detected"`
	Count    int    `json:"count"`
	Method   string `json:"method,omitempty"`
}

// GenerateHealthReport analyzes a table and reports per-column quality.
func GenerateHealthReport(t *Table) *HealthReport {
	report := &HealthReport{Columns: make([]ColumnReport, 0, t.NumCols())}
	numRows := t.NumRows()

	for _, c := range t.Columns() {
		cr := ColumnReport{
			Name:     c.Name,
			Type:     c.Type,
			Warnings: []string{},
		}

		missing := c.NullCount()
		cr.MissingValues.Count = missing
		if numRows > 0 {
			cr.MissingValues.Percentage = round2(float64(missing) / float64(numRows) * 100)
		}

		unique := c.UniqueCount()

		if c.Type == TypeUnknown {
			cr.Warnings = append(cr.Warnings, "Mixed or unrecognized data detected.")
		}
		if (c.Type == TypeString || c.Type == TypeCategorical) && numRows > 0 {
			if float64(unique)/float64(numRows) > 0.9 {
				cr.Warnings = append(cr.Warnings, fmt.Sprintf("High cardinality (%d unique values).", unique))
			}
		}
		if unique == 1 {
			cr.Warnings = append(cr.Warnings, "Low variance (all values identical).")
		}

		if c.Type.IsNumeric() {
			cr.AnomalyReport = detectOutliersIQR(c)
		}

		report.Columns = append(report.Columns, cr)
	}

	return report
}

// detectOutliersIQR counts values outside [Q1 - 1.5*IQR, Q3 + 1.5*IQR].
func detectOutliersIQR(c *Column) AnomalyReport {
	values := c.Floats()
	if len(values) < 4 {
		return AnomalyReport{}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	q1 := quantile(sorted, 0.25)
	q3 := quantile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	count := 0
	for _, v := range values {
		if v < lower || v > upper {
			count++
		}
	}
	if count == 0 {
		return AnomalyReport{}
	}
	return AnomalyReport{Detected: true, Count: count, Method: "IQR"}
}

// quantile interpolates linearly between order statistics.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
