package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/telnovia-org/analytics/dataset"
)

// ============================================================================
// INTENT CLASSIFIER
// ============================================================================

// Classify determines the analysis intent of a query against a schema.
// A reply that cannot be parsed is a request-level fault (ErrMalformedResponse);
// an unrecognized intent value is NOT an error — the router turns it into a
// fallback reply.
func Classify(ctx context.Context, client Client, schema dataset.Schema, query string) (IntentResult, error) {
	raw, err := client.CompleteStructured(ctx, BuildClassifyPrompt(schema), query, IntentTool())
	if err != nil {
		return IntentResult{}, err
	}

	var result IntentResult
	if err := json.Unmarshal([]byte(CleanResponse(string(raw))), &result); err != nil {
		return IntentResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	slog.Debug("intent classified", "intent", result.Intent, "hasVariables", result.Variables != nil)
	return result, nil
}

// ============================================================================
// CODE SYNTHESIZER
// ============================================================================

// Synthesize turns a descriptive query into a single pipeline expression
// over the fixed identifier 'df', or the failure sentinel. Malformed output
// is not retried here — a bad expression surfaces as an execution error at
// the engine boundary.
func Synthesize(ctx context.Context, client Client, schema dataset.Schema, query string) (string, error) {
	out, err := client.Complete(ctx, BuildSynthesisPrompt(schema), query)
	if err != nil {
		return "", err
	}

	expr := CleanResponse(out)
	slog.Debug("expression synthesized", "expr", expr)
	return expr, nil
}
