package dataset

import (
	"fmt"
	"strings"
)

// ============================================================================
// SCHEMA — Ordered column → type mapping
// ============================================================================
// Derived fresh from the loaded table on every query and handed to the AI
// translator as prompt context. Never persisted independently of the table.
// ============================================================================

// Field is one schema entry.
type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Schema is the ordered column → semantic type mapping of a table.
type Schema []Field

// ExtractSchema derives the schema from a table. A table with zero columns
// yields an empty schema.
func ExtractSchema(t *Table) Schema {
	s := make(Schema, 0, t.NumCols())
	for _, c := range t.Columns() {
		s = append(s, Field{Name: c.Name, Type: c.Type})
	}
	return s
}

// Has reports whether a column name appears in the schema.
func (s Schema) Has(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Names returns column names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// String renders the schema in the compact form embedded in AI prompts:
// {'product': 'string', 'sales': 'float'}.
func (s Schema) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, f := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s': '%s'", f.Name, f.Type)
	}
	b.WriteString("}")
	return b.String()
}
