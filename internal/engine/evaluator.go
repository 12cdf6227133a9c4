// Package engine orchestrates per-condition stability evaluation: fetch,
// dedup, correct, filter, hull build, query. Each condition is an isolation
// boundary — its failure never aborts the others. Only a data-source failure
// aborts the whole run, since no hull is meaningful without a consistent
// entry pool.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/condition"
	"github.com/talgya/phasehull/internal/entry"
	"github.com/talgya/phasehull/internal/hull"
	"github.com/talgya/phasehull/internal/source"
)

// ConditionResult is one condition's outcome. Exactly one of Stability or
// Err is set.
type ConditionResult struct {
	Label        string
	Description  string
	Stability    *hull.Result
	StablePhases []string // formulas of on-hull phases, for reporting
	Err          error
}

// Evaluator wires the pipeline components together. All fields are required
// except Parallel.
type Evaluator struct {
	Source     source.DataSource
	Corrector  *entry.Corrector
	Target     entry.Entry
	Conditions []condition.Condition
	Parallel   bool
}

// Run evaluates every condition and returns their results in condition
// order. A data-source failure aborts the run with a non-nil error; every
// other failure is recorded in its condition's result.
func (ev *Evaluator) Run(ctx context.Context) ([]ConditionResult, error) {
	results := make([]ConditionResult, len(ev.Conditions))

	if ev.Parallel {
		var wg sync.WaitGroup
		for i, cond := range ev.Conditions {
			wg.Add(1)
			go func(i int, cond condition.Condition) {
				defer wg.Done()
				results[i] = ev.evaluate(ctx, cond)
			}(i, cond)
		}
		wg.Wait()
	} else {
		for i, cond := range ev.Conditions {
			results[i] = ev.evaluate(ctx, cond)
		}
	}

	for _, r := range results {
		if r.Err != nil && errors.Is(r.Err, source.ErrDataSource) {
			return results, fmt.Errorf("condition %s: %w", r.Label, r.Err)
		}
	}
	return results, nil
}

// evaluate runs the full pipeline for one condition.
func (ev *Evaluator) evaluate(ctx context.Context, cond condition.Condition) ConditionResult {
	res := ConditionResult{Label: cond.Label, Description: cond.Description}

	fail := func(err error) ConditionResult {
		slog.Warn("condition failed", "condition", cond.Label, "error", err)
		res.Err = err
		return res
	}

	if err := cond.Validate(); err != nil {
		return fail(err)
	}

	system := unionElements(ev.Target.Composition.Elements(), cond.ExtraElements)
	pool, err := ev.Source.FetchEntries(ctx, system)
	if err != nil {
		return fail(err)
	}

	pool = entry.Dedup(pool)
	pool, dropped := ev.Corrector.Correct(pool)
	slog.Info("entry pool prepared",
		"condition", cond.Label,
		"chemsys", source.ChemsysKey(system),
		"entries", len(pool),
		"dropped", dropped,
	)

	filtered, err := condition.FilterForCondition(pool, cond)
	if err != nil {
		return fail(err)
	}

	h, err := hull.Build(filtered, cond.ChemPotentials)
	if err != nil {
		return fail(fmt.Errorf("condition %s: %w", cond.Label, err))
	}

	stability, err := h.EnergyAboveHull(ev.Target)
	if err != nil {
		return fail(fmt.Errorf("condition %s: %w", cond.Label, err))
	}

	for _, v := range h.Stable() {
		res.StablePhases = append(res.StablePhases, v.Entries[0].Composition.ReducedFormula())
	}
	sort.Strings(res.StablePhases)

	res.Stability = &stability
	slog.Info("condition evaluated",
		"condition", cond.Label,
		"e_above_hull", fmt.Sprintf("%.6f", stability.EnergyAboveHull),
		"stable_phases", len(res.StablePhases),
	)
	return res
}

// unionElements merges the target's elements with the condition's reservoir
// elements, sorted and deduplicated.
func unionElements(base, extra []chem.Element) []chem.Element {
	seen := map[chem.Element]bool{}
	for _, el := range base {
		seen[el] = true
	}
	for _, el := range extra {
		seen[el] = true
	}
	out := make([]chem.Element, 0, len(seen))
	for el := range seen {
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
