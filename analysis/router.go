package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/telnovia-org/analytics/causal"
	"github.com/telnovia-org/analytics/dataset"
	"github.com/telnovia-org/analytics/engine"
	"github.com/telnovia-org/analytics/store"
	"github.com/telnovia-org/analytics/translator"
)

// ============================================================================
// QUERY ROUTER
// ============================================================================
// The router drives a query through the full pipeline:
//
//	resolve notebook → load table → extract schema → classify intent
//	    → descriptive: synthesize expression → execute
//	    → causal:      identify + estimate effect
//	    → otherwise:   fallback reply
//
// Every terminal branch appends exactly one conversation turn before
// returning its reply.
// ============================================================================

// DefaultTimeout bounds a single model call when the router is built with a
// zero timeout.
const DefaultTimeout = 60 * time.Second

// timeoutReply is returned when a model call runs past its deadline. A slow
// upstream is the user's problem to retry, not a server fault.
const timeoutReply = "The analysis service timed out while processing your query. Please try again."

// fallbackReply handles intents the classifier could not place in either
// category.
const fallbackReply = "Maaf, saya tidak dapat mengenali jenis analisis dari pertanyaan Anda. " +
	"Silakan ajukan pertanyaan deskriptif (misalnya 'tampilkan total penjualan per produk') " +
	"atau pertanyaan kausal (misalnya 'apa dampak diskon terhadap penjualan'). / " +
	"Sorry, I could not recognize the type of analysis in your question. " +
	"Please ask a descriptive question (e.g. 'show total sales per product') " +
	"or a causal question (e.g. 'what is the impact of discount on sales')."

// Router orchestrates a single analysis query end to end.
type Router struct {
	notebooks store.Notebooks
	turns     store.Conversations
	llm       translator.Client
	timeout   time.Duration
	log       *slog.Logger

	// loadTable is swapped out in tests.
	loadTable func(path string) (*dataset.Table, error)
}

// NewRouter wires a router over the given stores and model client.
func NewRouter(notebooks store.Notebooks, turns store.Conversations, llm translator.Client, timeout time.Duration, log *slog.Logger) *Router {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		notebooks: notebooks,
		turns:     turns,
		llm:       llm,
		timeout:   timeout,
		log:       log,
		loadTable: dataset.LoadFile,
	}
}

// HandleQuery runs one natural-language query against a notebook's dataset
// and returns the reply text. Faults before intent classification come back
// as errors (ErrBadRequest, ErrNotFound, ErrReadError); faults after it are
// folded into the reply.
func (r *Router) HandleQuery(ctx context.Context, notebookID, ownerID, query string) (string, error) {
	if notebookID == "" || query == "" {
		return "", fmt.Errorf("%w: notebook id and query are required", ErrBadRequest)
	}

	nb, err := r.notebooks.Get(ctx, notebookID, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, notebookID)
		}
		return "", fmt.Errorf("resolving notebook: %w", err)
	}

	table, err := r.loadTable(nb.Filepath)
	if err != nil {
		if errors.Is(err, dataset.ErrUnsupportedFormat) {
			return "", fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return "", fmt.Errorf("%w: %v", ErrReadError, err)
	}
	schema := dataset.ExtractSchema(table)

	intent, err := r.classify(ctx, schema, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return r.finish(ctx, notebookID, query, timeoutReply)
		}
		return "", fmt.Errorf("classifying query: %w", err)
	}

	r.log.Info("query classified",
		"notebook", notebookID,
		"intent", intent.Intent,
		"rows", table.NumRows())

	var reply string
	switch {
	case intent.Intent == translator.IntentCausal && intent.Variables != nil:
		reply = causal.Estimate(table, intent.Variables.Treatment, intent.Variables.Outcome, intent.Variables.CommonCauses)
	case intent.Intent == translator.IntentDescriptive:
		reply = r.descriptive(ctx, schema, table, query)
	default:
		reply = fallbackReply
	}

	return r.finish(ctx, notebookID, query, reply)
}

func (r *Router) classify(ctx context.Context, schema dataset.Schema, query string) (translator.IntentResult, error) {
	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return translator.Classify(cctx, r.llm, schema, query)
}

// descriptive synthesizes a pipeline expression and executes it. All failures
// on this path, including a model transport error, become reply text.
func (r *Router) descriptive(ctx context.Context, schema dataset.Schema, table *dataset.Table, query string) string {
	sctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	expr, err := translator.Synthesize(sctx, r.llm, schema, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return timeoutReply
		}
		return fmt.Sprintf("Error generating analysis code: %v", err)
	}
	return engine.Execute(expr, table)
}

// finish persists the turn and hands the reply back. A persistence failure
// is logged but does not eat the reply the user already earned.
func (r *Router) finish(ctx context.Context, notebookID, query, reply string) (string, error) {
	if err := r.turns.Append(ctx, notebookID, query, reply); err != nil {
		r.log.Error("failed to persist conversation turn", "notebook", notebookID, "error", err)
	}
	return reply, nil
}
