package causal

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/telnovia-org/analytics/dataset"
)

// ============================================================================
// CAUSAL ESTIMATOR — Linear-regression adjustment
// ============================================================================
// estimate(table, treatment, outcome, common_causes) → reply string.
//
// The classifier is not trusted to produce valid column bindings, so every
// precondition is re-checked here against the actual table. All failures,
// from bad bindings to a singular design matrix, become diagnostic replies —
// this boundary never returns an error to the router.
// ============================================================================

// Estimate computes the average treatment effect of treatment on outcome,
// adjusting for the common causes, and formats it as a reply sentence with
// the point estimate at two decimal places.
func Estimate(t *dataset.Table, treatment, outcome string, commonCauses []string) string {
	if diag := validate(t, treatment, outcome, commonCauses); diag != "" {
		return diag
	}

	model := Model{Treatment: treatment, Outcome: outcome, CommonCauses: dedupe(commonCauses)}
	estimand, err := model.IdentifyEffect()
	if err != nil {
		return diagnostic(fmt.Sprintf("could not identify a causal estimand: %v", err))
	}

	effect, err := regressEffect(t, treatment, outcome, estimand.AdjustmentSet)
	if err != nil {
		slog.Warn("causal estimation failed", "treatment", treatment, "outcome", outcome, "error", err)
		return diagnostic(err.Error())
	}

	return fmt.Sprintf(
		"Estimated causal analysis:\nA change in '%s' on average causes a change of %.2f in '%s'.",
		treatment, effect, outcome)
}

// validate re-checks the intent-result invariants against the table.
// An empty return means all preconditions hold.
func validate(t *dataset.Table, treatment, outcome string, commonCauses []string) string {
	if treatment == "" || outcome == "" {
		return diagnostic("both a treatment and an outcome column are required")
	}
	if treatment == outcome {
		return diagnostic(fmt.Sprintf("treatment and outcome must be different columns (got '%s' for both)", treatment))
	}
	if !t.HasColumn(treatment) {
		return diagnostic(fmt.Sprintf("treatment column '%s' does not exist", treatment))
	}
	if !t.HasColumn(outcome) {
		return diagnostic(fmt.Sprintf("outcome column '%s' does not exist", outcome))
	}
	for _, cause := range commonCauses {
		if cause == treatment || cause == outcome {
			return diagnostic(fmt.Sprintf("common cause '%s' overlaps the treatment or outcome", cause))
		}
		if !t.HasColumn(cause) {
			return diagnostic(fmt.Sprintf("common cause column '%s' does not exist", cause))
		}
	}

	tc, _ := t.Column(treatment)
	oc, _ := t.Column(outcome)
	if !tc.Type.IsNumeric() {
		return diagnostic(fmt.Sprintf("treatment column '%s' must be numeric", treatment))
	}
	if !oc.Type.IsNumeric() {
		return diagnostic(fmt.Sprintf("outcome column '%s' must be numeric", outcome))
	}
	return ""
}

func diagnostic(reason string) string {
	return fmt.Sprintf("Causal analysis failed: %s. Please check the column names and try again.", reason)
}

// ============================================================================
// REGRESSION
// ============================================================================

// regressEffect runs OLS of outcome on [intercept, treatment, confounders]
// and returns the treatment coefficient. Categorical confounders are one-hot
// encoded with the first level as reference.
func regressEffect(t *dataset.Table, treatment, outcome string, adjust []string) (float64, error) {
	tc, _ := t.Column(treatment)
	oc, _ := t.Column(outcome)

	confounders := make([]*dataset.Column, len(adjust))
	for i, name := range adjust {
		c, _ := t.Column(name)
		confounders[i] = c
	}

	// Complete-case rows: every involved column non-null.
	var rows []int
	for i := 0; i < t.NumRows(); i++ {
		if tc.IsNull(i) || oc.IsNull(i) {
			continue
		}
		ok := true
		for _, c := range confounders {
			if c.IsNull(i) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}

	// Covariate layout: intercept, treatment, then per-confounder columns.
	covariates := []covariate{interceptCov{}, numericCov{col: tc}}
	for _, c := range confounders {
		if c.Type.IsNumeric() {
			covariates = append(covariates, numericCov{col: c})
			continue
		}
		for _, lvl := range encodeLevels(c, rows) {
			covariates = append(covariates, dummyCov{col: c, level: lvl})
		}
	}

	n, p := len(rows), len(covariates)
	if n <= p {
		return 0, fmt.Errorf("not enough complete rows (%d) for %d regression terms", n, p-1)
	}

	X := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for r, i := range rows {
		for j, cov := range covariates {
			X.Set(r, j, cov.value(i))
		}
		v, _ := oc.Float(i)
		y.SetVec(r, v)
	}

	var qr mat.QR
	qr.Factorize(X)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, y); err != nil {
		return 0, fmt.Errorf("regression could not be solved (collinear or constant columns): %v", err)
	}

	// beta[1] is the treatment coefficient: the average marginal effect of a
	// unit change in treatment on the outcome.
	return beta.AtVec(1), nil
}

// ============================================================================
// COVARIATES
// ============================================================================

type covariate interface {
	value(row int) float64
}

type interceptCov struct{}

func (interceptCov) value(int) float64 { return 1 }

type numericCov struct{ col *dataset.Column }

func (c numericCov) value(row int) float64 {
	v, _ := c.col.Float(row)
	return v
}

// dummyCov is a one-hot indicator for one level of a categorical column.
type dummyCov struct {
	col   *dataset.Column
	level string
}

func (c dummyCov) value(row int) float64 {
	if c.col.String(row) == c.level {
		return 1
	}
	return 0
}

// encodeLevels returns the distinct levels of a categorical column over the
// given rows, in first-appearance order, minus the first (reference) level.
func encodeLevels(c *dataset.Column, rows []int) []string {
	seen := make(map[string]struct{})
	var levels []string
	for _, i := range rows {
		v := c.String(i)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		levels = append(levels, v)
	}
	if len(levels) <= 1 {
		return nil
	}
	return levels[1:]
}
