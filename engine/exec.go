package engine

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/telnovia-org/analytics/dataset"
)

// ============================================================================
// EXECUTOR — Safe evaluation of synthesized expressions
// ============================================================================
// Entry point: Execute(expr, table)
//
// Pipeline:
//   1. Sentinel short-circuit (never parsed, never executed)
//   2. Parse expression → Plan (whitelisted operations only)
//   3. Run Plan against the table
//   4. Render: tabular → markdown table, 1x1 → scalar string
//
// This is the trust boundary between the orchestrator and model-generated
// text. Every failure inside it becomes a reply string; nothing propagates
// as an error or panic.
// ============================================================================

// FailureSentinel is the literal string the synthesizer returns when a query
// cannot be answered from the schema.
const FailureSentinel = "ERROR: Query cannot be answered."

// Execute evaluates a synthesized expression against a table and returns the
// reply text. It never returns an error — failures are converted to replies.
func Execute(expr string, t *dataset.Table) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("executor panic", "expr", expr, "panic", r)
			reply = fmt.Sprintf("Error executing generated code: %v", r)
		}
	}()

	expr = strings.TrimSpace(expr)
	if strings.Contains(expr, FailureSentinel) {
		return FailureSentinel
	}

	plan, err := Parse(expr)
	if err != nil {
		return fmt.Sprintf("Error executing generated code: %v", err)
	}

	result, err := plan.Run(t)
	if err != nil {
		return fmt.Sprintf("Error executing generated code: %v", err)
	}

	return Render(result)
}
