package translator

import (
	"context"
	"errors"
)

// ============================================================================
// TRANSLATOR — AI boundary for intent classification and code synthesis
// ============================================================================
// This is the ONLY package that talks to an external AI service. It receives
// schema metadata plus the user question and returns either a structured
// intent or a single pipeline expression. It never sees raw data rows.
//
// The model is treated as an untrusted external service: structured replies
// are parsed defensively, and nothing it returns is trusted until the
// downstream component (engine, causal) validates it.
// ============================================================================

// Intent is the classified purpose of a natural-language query.
type Intent string

const (
	IntentDescriptive Intent = "descriptive_analysis"
	IntentCausal      Intent = "causal_analysis"
)

// CausalVariables is the treatment/outcome/confounder binding extracted for
// causal queries. Field values are model-extracted column names — the causal
// estimator validates them against the table before modeling.
type CausalVariables struct {
	Treatment    string   `json:"treatment"`
	Outcome      string   `json:"outcome"`
	CommonCauses []string `json:"common_causes"`
}

// IntentResult is the classifier's structured output.
type IntentResult struct {
	Intent    Intent           `json:"intent"`
	Variables *CausalVariables `json:"variables"`
}

// Recognized reports whether the intent is one of the two known values.
func (r IntentResult) Recognized() bool {
	return r.Intent == IntentDescriptive || r.Intent == IntentCausal
}

// ErrMalformedResponse marks a model reply that could not be parsed into the
// requested structure. It is a request-level fault, not a reply.
var ErrMalformedResponse = errors.New("malformed model response")

// Client is the capability to call a language model. Injected into the
// classifier and synthesizer so tests can substitute a deterministic fake.
type Client interface {
	// Complete sends a free-text prompt and returns the text reply.
	Complete(ctx context.Context, system, user string) (string, error)

	// CompleteStructured forces the model to answer through a single tool
	// call and returns the tool input as raw JSON.
	CompleteStructured(ctx context.Context, system, user string, tool Tool) ([]byte, error)
}

// Tool describes the structured-output contract for CompleteStructured.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}
