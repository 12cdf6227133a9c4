// Package entry models computed-energy records and the correction pipeline
// that makes heterogeneous records comparable before hull construction.
package entry

import (
	"fmt"
	"math"
	"sort"

	"github.com/talgya/phasehull/internal/chem"
)

// EnergyTol is the energy-per-atom tolerance (eV/atom) used for duplicate
// detection. It matches the hull epsilon so dedup never keeps two entries the
// hull would consider coincident.
const EnergyTol = 1e-7

// Kind discriminates how an entry's energy may be used downstream.
type Kind int

const (
	// Computed entries come from the data source and compete on the hull.
	Computed Kind = iota
	// Reference entries carry a fixed reservoir energy. They bypass the
	// correction pipeline and anchor chemical potentials under open conditions.
	Reference
)

// String returns the kind name for logging.
func (k Kind) String() string {
	if k == Reference {
		return "reference"
	}
	return "computed"
}

// Entry is one (composition, energy) record with provenance. Entries are
// immutable by convention: corrections and grand-potential transforms produce
// new values, never in-place edits.
type Entry struct {
	Kind        Kind             `json:"kind"`
	Composition chem.Composition `json:"composition"`
	EnergyRaw   float64          `json:"energy"`     // total energy as computed
	Correction  float64          `json:"correction"` // additive adjustment, 0 until corrected
	Corrected   bool             `json:"corrected"`
	RunType     string           `json:"run_type"`  // provenance of the producing calculation
	SourceID    string           `json:"source_id"` // opaque upstream identifier
}

// Energy returns the corrected total energy.
func (e Entry) Energy() float64 {
	return e.EnergyRaw + e.Correction
}

// EnergyPerAtom returns corrected energy normalized per atom.
func (e Entry) EnergyPerAtom() float64 {
	return e.Energy() / e.Composition.NumAtoms()
}

// String renders a compact description for logs and errors.
func (e Entry) String() string {
	return fmt.Sprintf("%s (%.6f eV, %s)", e.Composition.ReducedFormula(), e.Energy(), e.SourceID)
}

// Dedup collapses duplicate entries: two entries are duplicates iff their
// normalized compositions match and their energies per atom agree within
// EnergyTol. The lower energy wins; exact ties keep the smaller SourceID.
// Output order is deterministic (formula, then energy, then source)
// regardless of input order, so the whole pipeline is reproducible.
func Dedup(entries []Entry) []Entry {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		ki, kj := sorted[i].Composition.Fingerprint(), sorted[j].Composition.Fingerprint()
		if ki != kj {
			return ki < kj
		}
		ei, ej := sorted[i].EnergyPerAtom(), sorted[j].EnergyPerAtom()
		if ei != ej {
			return ei < ej
		}
		return sorted[i].SourceID < sorted[j].SourceID
	})

	out := make([]Entry, 0, len(sorted))
	for _, e := range sorted {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if prev.Composition.Fingerprint() == e.Composition.Fingerprint() &&
				math.Abs(prev.EnergyPerAtom()-e.EnergyPerAtom()) <= EnergyTol {
				// Duplicate of the kept (lower-energy) record.
				continue
			}
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		fi, fj := out[i].Composition.ReducedFormula(), out[j].Composition.ReducedFormula()
		if fi != fj {
			return fi < fj
		}
		ei, ej := out[i].Energy(), out[j].Energy()
		if ei != ej {
			return ei < ej
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// SystemOf returns the sorted union of elements across all entries.
func SystemOf(entries []Entry) []chem.Element {
	seen := map[chem.Element]bool{}
	for _, e := range entries {
		for el := range e.Composition {
			seen[el] = true
		}
	}
	out := make([]chem.Element, 0, len(seen))
	for el := range seen {
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
