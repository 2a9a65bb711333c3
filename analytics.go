// Package analytics provides a natural-language analytics backend for
// tabular datasets.
//
// Usage:
//
//	import "github.com/telnovia-org/analytics/engine"
//
//	reply := engine.Execute("df.group_by('product').agg(pl.sum('sales'))", table)
//
// The engine takes a pipeline expression (produced by the AI translator) and
// a typed table, and returns render-ready reply text (a markdown table or a
// scalar value). Causal questions go through the causal package instead,
// which estimates treatment effects by regression adjustment.
//
// AI calls are confined to the translator package. The engine and estimator
// never contact any external service — all computation is local.
package analytics
