package analysis

import "errors"

// ============================================================================
// ERROR TAXONOMY — Request-level faults
// ============================================================================
// Everything that fails before a table is loaded and an intent is classified
// is one of these; the API layer maps them to HTTP statuses. Everything that
// fails after classification is absorbed into the reply text instead — the
// conversational contract promises one turn per query.
// ============================================================================

var (
	// ErrBadRequest marks a missing notebook id or an unsupported file format.
	ErrBadRequest = errors.New("bad request")

	// ErrNotFound marks a notebook that does not resolve for this owner.
	ErrNotFound = errors.New("notebook not found")

	// ErrReadError marks a dataset file that could not be loaded.
	ErrReadError = errors.New("failed to read dataset")
)
