package translator

import (
	"fmt"
	"strings"

	"github.com/telnovia-org/analytics/dataset"
)

// ============================================================================
// PROMPT BUILDERS — Schema-conditioned prompts
// ============================================================================
// The model only ever sees the schema (column names + type tags) and the
// user question. Never raw data rows.
// ============================================================================

// BuildClassifyPrompt produces the system prompt for intent classification.
func BuildClassifyPrompt(schema dataset.Schema) string {
	return fmt.Sprintf(`You are an expert analytical system. Your job is to analyze a user's query about a dataset and determine their intent.
The dataset schema is: %s.

Classify the query as one of:
- "descriptive_analysis" for queries like 'show', 'describe', 'list', 'count', 'average'.
- "causal_analysis" for queries asking 'what is the effect of', 'impact of', 'why did X change'.

For "descriptive_analysis", variables must be null.
For "causal_analysis", extract "treatment", "outcome", and "common_causes" from the query and schema.`, schema.String())
}

// IntentTool is the structured-output contract for the classifier. The two
// concerns — intent tagging and variable extraction — are independent fields
// so a later redesign can split them without touching this contract.
func IntentTool() Tool {
	return Tool{
		Name:        "record_intent",
		Description: "Record the classified analysis intent and any extracted causal variables.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"intent": map[string]any{
					"type": "string",
					"enum": []string{string(IntentDescriptive), string(IntentCausal)},
				},
				"variables": map[string]any{
					"type": []string{"object", "null"},
					"properties": map[string]any{
						"treatment": map[string]any{"type": "string"},
						"outcome":   map[string]any{"type": "string"},
						"common_causes": map[string]any{
							"type":  "array",
							"items": map[string]any{"type": "string"},
						},
					},
				},
			},
			"required": []string{"intent"},
		},
	}
}

// BuildSynthesisPrompt produces the system prompt for expression synthesis.
// The vocabulary it allows is exactly what the engine parser accepts.
func BuildSynthesisPrompt(schema dataset.Schema) string {
	return fmt.Sprintf(`You are an expert data analyst who specializes in the Polars data-transformation library.
A user will provide a natural language query about a dataset.
Your task is to convert the query into a single, executable line of Polars code that operates on a DataFrame named 'df'.

The schema of the DataFrame 'df' is: %s.

Crucial rules:
- Use Polars syntax only. For grouping and aggregation use .group_by('column').agg(...), NEVER .groupby().
- Only use these methods on df: select, filter, group_by, agg, sort, head, limit, describe.
- Only use these functions: pl.col, pl.sum, pl.mean, pl.min, pl.max, pl.count, pl.len.
- Filters compare one column with one literal, e.g. df.filter(pl.col('price') > 100).
- Reference the DataFrame only through the name 'df'.
- Return exactly one expression: no explanation, no import statements, no markdown formatting.

Example query: "show total sales per product"
Example Polars code for the query: df.group_by('product').agg(pl.sum('sales'))

If the query cannot be answered with the given schema, return "%s" and nothing else.`, schema.String(), FailureSentinel)
}

// FailureSentinel mirrors engine.FailureSentinel; declared here so prompt
// text and executor agree on the exact literal.
const FailureSentinel = "ERROR: Query cannot be answered."

// CleanResponse strips markdown code fences and surrounding whitespace from
// a model reply. Models occasionally fence output despite instructions.
func CleanResponse(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```python")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
