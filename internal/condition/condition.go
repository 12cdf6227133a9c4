// Package condition describes open-system chemical environments: which
// species are held at fixed chemical potential, their reference energies, and
// how the hull-forming entry pool is filtered before construction.
package condition

import (
	"fmt"
	"sort"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/entry"
)

// ReferenceSpec names a reservoir species and its fixed total energy per
// formula unit (e.g. H2 at 2*mu_H).
type ReferenceSpec struct {
	Formula string  `yaml:"formula"`
	Energy  float64 `yaml:"energy"`
}

// Condition is one open-system environment. The open-species set is explicit
// configuration — there is no per-label branching anywhere downstream.
type Condition struct {
	Label       string `yaml:"label"`
	Description string `yaml:"description"`

	// ChemPotentials fixes mu per open element (eV/atom). Elements listed
	// here are removed from the hull's composition space.
	ChemPotentials map[chem.Element]float64 `yaml:"chemical_potentials"`

	// References are the reservoir species reinstated into the entry pool with
	// fixed energies after filtering.
	References []ReferenceSpec `yaml:"references"`

	// Eliminate lists species formulas whose computed entries must leave the
	// pool so they cannot compete against the fixed reference energies.
	// Reference formulas are always eliminated even if not listed here.
	Eliminate []string `yaml:"eliminate"`

	// ExtraElements extends the fetched chemical system beyond the target's
	// elements (reservoir elements such as H, O or C).
	ExtraElements []chem.Element `yaml:"extra_elements"`
}

// OpenElements returns the elements with fixed chemical potential, sorted.
func (c Condition) OpenElements() []chem.Element {
	els := make([]chem.Element, 0, len(c.ChemPotentials))
	for el := range c.ChemPotentials {
		els = append(els, el)
	}
	sort.Slice(els, func(i, j int) bool { return els[i] < els[j] })
	return els
}

// Validate checks the condition for misconfiguration: unknown elements in the
// potentials map or unresolvable reference formulas.
func (c Condition) Validate() error {
	if c.Label == "" {
		return fmt.Errorf("condition: empty label")
	}
	for el := range c.ChemPotentials {
		if !el.Valid() {
			return fmt.Errorf("condition %s: %w: %q", c.Label, chem.ErrUnknownSpecies, el)
		}
	}
	for _, ref := range c.References {
		if _, err := chem.ParseFormula(ref.Formula); err != nil {
			return fmt.Errorf("condition %s: reference %q: %w", c.Label, ref.Formula, err)
		}
	}
	for _, f := range c.Eliminate {
		if _, err := chem.ParseFormula(f); err != nil {
			return fmt.Errorf("condition %s: eliminate %q: %w", c.Label, f, err)
		}
	}
	return nil
}

// BuildReference constructs the fixed-energy reference entry for a spec.
// Fails with chem.ErrUnknownSpecies (wrapped) if the formula does not resolve.
func BuildReference(spec ReferenceSpec, label string) (entry.Entry, error) {
	comp, err := chem.ParseFormula(spec.Formula)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("reference %q: %w", spec.Formula, err)
	}
	return entry.Entry{
		Kind:        entry.Reference,
		Composition: comp,
		EnergyRaw:   spec.Energy,
		SourceID:    fmt.Sprintf("ref:%s:%s", label, spec.Formula),
	}, nil
}

// FilterForCondition removes every entry whose normalized composition matches
// one of the condition's eliminate/reference species, then appends the built
// reference entries. Removal strictly precedes append: a computed H2O record
// must never survive to compete against the fixed-potential H2O reference.
// The function is pure — the input slice is not modified.
func FilterForCondition(entries []entry.Entry, cond Condition) ([]entry.Entry, error) {
	banned := map[string]bool{}
	for _, f := range cond.Eliminate {
		comp, err := chem.ParseFormula(f)
		if err != nil {
			return nil, fmt.Errorf("condition %s: eliminate %q: %w", cond.Label, f, err)
		}
		banned[comp.Fingerprint()] = true
	}

	refs := make([]entry.Entry, 0, len(cond.References))
	for _, spec := range cond.References {
		ref, err := BuildReference(spec, cond.Label)
		if err != nil {
			return nil, fmt.Errorf("condition %s: %w", cond.Label, err)
		}
		banned[ref.Composition.Fingerprint()] = true
		refs = append(refs, ref)
	}

	out := make([]entry.Entry, 0, len(entries)+len(refs))
	for _, e := range entries {
		if banned[e.Composition.Fingerprint()] {
			continue
		}
		out = append(out, e)
	}
	out = append(out, refs...)
	return out, nil
}
