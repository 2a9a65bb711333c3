package causal

import (
	"fmt"
	"sort"
)

// ============================================================================
// CAUSAL GRAPH — Backdoor confounding structure
// ============================================================================
// The assumed graph is the standard backdoor shape: every common cause
// points into both treatment and outcome, and treatment points into outcome.
// Identification finds an adjustment set that blocks every backdoor path
// from treatment to outcome.
// ============================================================================

// Model is the assumed causal structure for one estimation.
type Model struct {
	Treatment    string
	Outcome      string
	CommonCauses []string
}

// Estimand is the identified adjustment-set formula: regress outcome on
// treatment while controlling for the adjustment set.
type Estimand struct {
	AdjustmentSet []string
}

// edge is a directed cause → effect pair.
type edge struct {
	from, to string
}

// graph is the explicit edge list built from a Model.
type graph struct {
	edges []edge
}

func buildGraph(m Model) graph {
	g := graph{}
	g.edges = append(g.edges, edge{m.Treatment, m.Outcome})
	for _, c := range m.CommonCauses {
		g.edges = append(g.edges, edge{c, m.Treatment})
		g.edges = append(g.edges, edge{c, m.Outcome})
	}
	return g
}

// parents returns nodes with an edge into the given node.
func (g graph) parents(node string) []string {
	var out []string
	for _, e := range g.edges {
		if e.to == node {
			out = append(out, e.from)
		}
	}
	return out
}

// IdentifyEffect derives the adjustment set for the effect of treatment on
// outcome. In this graph shape every backdoor path is treatment ← C →
// outcome, so the set of shared parents of treatment and outcome blocks all
// of them. Returns an error if no treatment → outcome edge exists.
func (m Model) IdentifyEffect() (Estimand, error) {
	g := buildGraph(m)

	hasDirect := false
	for _, e := range g.edges {
		if e.from == m.Treatment && e.to == m.Outcome {
			hasDirect = true
			break
		}
	}
	if !hasDirect {
		return Estimand{}, fmt.Errorf("no causal path from %s to %s", m.Treatment, m.Outcome)
	}

	outcomeParents := make(map[string]struct{})
	for _, p := range g.parents(m.Outcome) {
		if p != m.Treatment {
			outcomeParents[p] = struct{}{}
		}
	}

	var adjust []string
	for _, p := range g.parents(m.Treatment) {
		if _, shared := outcomeParents[p]; shared {
			adjust = append(adjust, p)
		}
	}
	sort.Strings(adjust)
	return Estimand{AdjustmentSet: dedupe(adjust)}, nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
