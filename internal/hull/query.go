package hull

import (
	"fmt"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/entry"
)

// Result reports the stability of one target composition against one hull.
type Result struct {
	// EnergyAboveHull is the vertical distance (eV per closed atom) from the
	// target to the lower envelope. 0 means on-hull (stable).
	EnergyAboveHull float64 `json:"energy_above_hull"`

	// Decomposition maps neighboring stable-phase formulas to fractional
	// weights (barycentric coordinates, summing to 1 within Epsilon).
	Decomposition map[string]float64 `json:"decomposition"`

	// TargetEnergyPerAtom is the target's corrected energy per (total) atom.
	TargetEnergyPerAtom float64 `json:"target_energy_per_atom"`

	// GrandEnergyPerAtom is the transformed energy per closed atom actually
	// compared against the hull.
	GrandEnergyPerAtom float64 `json:"grand_energy_per_atom"`
}

// EnergyAboveHull evaluates a target entry against the hull. The target's
// energy must be on the same (corrected) footing as the training entries; it
// undergoes the identical grand-potential transform.
//
// Errors: ErrOutOfHullSpace when the target's reduced composition carries
// elements outside the closed system or is entirely open-species;
// ErrHullInconsistency when the target lies more than Epsilon below the
// envelope (slightly negative distances within Epsilon clamp to 0).
func (h *Hull) EnergyAboveHull(target entry.Entry) (Result, error) {
	open := make(map[chem.Element]bool, len(h.Potentials))
	for el := range h.Potentials {
		open[el] = true
	}
	closed := target.Composition.Without(open)
	if len(closed) == 0 {
		return Result{}, fmt.Errorf("%w: %s is entirely reservoir species",
			ErrOutOfHullSpace, target.Composition.ReducedFormula())
	}
	if !closed.Subset(h.Elements) {
		return Result{}, fmt.Errorf("%w: %s outside system %v",
			ErrOutOfHullSpace, target.Composition.ReducedFormula(), h.Elements)
	}

	grand := grandEnergy(target, h.Potentials)
	epa := grand / closed.NumAtoms()
	coord := coordOf(closed, h.Elements)

	hullE, facet, lambda, err := h.energyAt(coord)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", target.Composition.ReducedFormula(), err)
	}

	above := epa - hullE
	if above < -Epsilon {
		return Result{}, fmt.Errorf("%w: %s at %.9f vs hull %.9f",
			ErrHullInconsistency, target.Composition.ReducedFormula(), epa, hullE)
	}
	if above < 0 {
		above = 0
	}

	decomp := make(map[string]float64)
	for i, vi := range facet.Verts {
		if lambda[i] < Epsilon {
			continue
		}
		formula := h.Vertices[vi].Entries[0].Composition.ReducedFormula()
		decomp[formula] += lambda[i]
	}

	return Result{
		EnergyAboveHull:     above,
		Decomposition:       decomp,
		TargetEnergyPerAtom: target.EnergyPerAtom(),
		GrandEnergyPerAtom:  epa,
	}, nil
}
