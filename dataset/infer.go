package dataset

import (
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// TYPE INFERENCE — Heuristic column classification
// ============================================================================
// Inspects the non-null cells of a column and assigns a semantic type tag.
// A tag wins when at least 80% of non-null values match it; ties resolve in
// the order boolean → datetime → numeric → string. Low-cardinality string
// columns are tagged categorical so the causal estimator can encode them.
// ============================================================================

const matchThreshold = 0.8

func inferColumnType(c *Column) {
	values := make([]string, 0, len(c.raw))
	for i := range c.raw {
		if !c.null[i] {
			values = append(values, c.raw[i])
		}
	}
	if len(values) == 0 {
		c.Type = TypeUnknown
		return
	}

	boolCount, dateCount, numCount, intCount := 0, 0, 0, 0
	for _, v := range values {
		if isBool(v) {
			boolCount++
		}
		if isDatetime(v) {
			dateCount++
		}
		if f, ok := parseNumeric(v); ok {
			numCount++
			if f == float64(int64(f)) && !strings.Contains(v, ".") {
				intCount++
			}
		}
	}

	threshold := int(float64(len(values)) * matchThreshold)
	if threshold < 1 {
		threshold = 1
	}

	switch {
	case boolCount >= threshold:
		c.Type = TypeBoolean
		fillBool(c)
	case dateCount >= threshold:
		c.Type = TypeDatetime
	case numCount >= threshold:
		if intCount == numCount {
			c.Type = TypeInteger
		} else {
			c.Type = TypeFloat
		}
		fillNumeric(c)
		return
	default:
		c.Type = classifyString(values)
	}
}

// fillNumeric parses every non-null cell into the column's float slice.
// Cells that fail to parse become nulls — a numeric column never carries
// half-parsed values into the engine.
func fillNumeric(c *Column) {
	for i := range c.raw {
		if c.null[i] {
			continue
		}
		f, ok := parseNumeric(c.raw[i])
		if !ok {
			c.null[i] = true
			c.raw[i] = ""
			continue
		}
		c.nums[i] = f
	}
}

// fillBool canonicalizes boolean cells to "true"/"false" regardless of the
// source spelling ("Yes", "FALSE", ...), so comparisons against a boolean
// literal do not depend on how the file wrote its booleans. Cells that are
// not a recognized spelling become nulls.
func fillBool(c *Column) {
	for i := range c.raw {
		if c.null[i] {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(c.raw[i])) {
		case "true", "yes":
			c.raw[i] = "true"
		case "false", "no":
			c.raw[i] = "false"
		default:
			c.null[i] = true
			c.raw[i] = ""
		}
	}
}

// classifyString splits text columns into categorical vs free-form string.
// Few distinct values relative to the row count means the column behaves
// like a grouping label, not free text.
func classifyString(values []string) Type {
	unique := make(map[string]struct{}, len(values))
	for _, v := range values {
		unique[v] = struct{}{}
	}
	ratio := float64(len(unique)) / float64(len(values))
	if len(unique) <= 20 && ratio < 0.5 {
		return TypeCategorical
	}
	return TypeString
}

// ============================================================================
// VALUE DETECTORS
// ============================================================================

// parseNumeric accepts plain numbers plus common spreadsheet decorations
// ("1,234.56", "$40", "-€3.20").
func parseNumeric(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

func isBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "false", "yes", "no":
		return true
	}
	return false
}

var datetimeFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"Jan-2006",
	"Jan 2, 2006",
}

func isDatetime(s string) bool {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeFormats {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
