package entry

import (
	"log/slog"

	"github.com/talgya/phasehull/internal/chem"
)

// SchemeVersion identifies the correction table below. Bump whenever a value
// in the table changes so cached corrected entries are never mixed across
// schemes.
const SchemeVersion = "anion-2020.1"

// anionCorrections holds per-atom energy adjustments (eV/atom of the anion)
// applied to compounds containing the anion alongside at least one other
// element. Pure-species entries (O2, H2 and friends) are left untouched:
// their energies are either reservoir references or elemental ground states.
var anionCorrections = map[chem.Element]float64{
	"O":  -0.687,
	"S":  -0.503,
	"F":  -0.462,
	"Cl": -0.614,
	"Br": -0.534,
	"I":  -0.379,
	"N":  -0.361,
	"H":  -0.179,
}

// acceptedRunTypes lists provenance tags the scheme knows how to correct.
// Entries produced by anything else require a correction we cannot supply and
// are dropped (counted, not fatal).
var acceptedRunTypes = map[string]bool{
	"":      true, // unspecified provenance is treated as the default functional
	"GGA":   true,
	"GGA+U": true,
}

// Corrector applies the versioned correction scheme. The zero value is not
// usable; construct with NewCorrector.
type Corrector struct {
	version string
	anions  map[chem.Element]float64
	accepts map[string]bool
}

// NewCorrector returns the corrector for the current SchemeVersion.
func NewCorrector() *Corrector {
	return &Corrector{
		version: SchemeVersion,
		anions:  anionCorrections,
		accepts: acceptedRunTypes,
	}
}

// Version returns the scheme identifier.
func (c *Corrector) Version() string { return c.version }

// Correct applies the scheme to every entry and returns the corrected set
// plus the number of dropped (uncorrectable) entries. Reference entries and
// already-corrected entries pass through unchanged, which makes the pipeline
// idempotent: Correct(Correct(es)) == Correct(es). Output is bit-identical
// across runs for identical input.
func (c *Corrector) Correct(entries []Entry) ([]Entry, int) {
	out := make([]Entry, 0, len(entries))
	dropped := 0
	for _, e := range entries {
		if e.Kind == Reference || e.Corrected {
			out = append(out, e)
			continue
		}
		if !c.accepts[e.RunType] {
			dropped++
			slog.Debug("dropping uncorrectable entry", "entry", e.String(), "run_type", e.RunType)
			continue
		}
		e.Correction = c.correctionFor(e.Composition)
		e.Corrected = true
		out = append(out, e)
	}
	if dropped > 0 {
		slog.Info("correction pipeline dropped entries", "scheme", c.version, "dropped", dropped)
	}
	return out, dropped
}

// correctionFor sums anion adjustments for a composition. Single-element
// compositions get no adjustment: the anion terms exist to balance compound
// formation energies against elemental references.
func (c *Corrector) correctionFor(comp chem.Composition) float64 {
	if len(comp) < 2 {
		return 0
	}
	var corr float64
	for el, amt := range comp {
		if per, ok := c.anions[el]; ok {
			corr += per * amt
		}
	}
	return corr
}
