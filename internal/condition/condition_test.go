package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/condition"
	"github.com/talgya/phasehull/internal/entry"
)

func mk(formula string, energy float64, id string) entry.Entry {
	return entry.Entry{
		Kind:        entry.Computed,
		Composition: chem.MustParse(formula),
		EnergyRaw:   energy,
		SourceID:    id,
	}
}

func hydrogenRich() condition.Condition {
	return condition.Condition{
		Label:       "A",
		Description: "Hydrogen-rich",
		ChemPotentials: map[chem.Element]float64{
			"H": -4.024, "O": -8.006,
		},
		References: []condition.ReferenceSpec{
			{Formula: "H2", Energy: -8.048},
			{Formula: "O2", Energy: -16.012},
			{Formula: "H2O", Energy: -16.054},
		},
		Eliminate:     []string{"H2", "O2", "H2O"},
		ExtraElements: []chem.Element{"H", "O"},
	}
}

func TestBuildReference(t *testing.T) {
	ref, err := condition.BuildReference(condition.ReferenceSpec{Formula: "H2O", Energy: -16.054}, "A")
	require.NoError(t, err)
	assert.Equal(t, entry.Reference, ref.Kind)
	assert.InDelta(t, -16.054, ref.Energy(), 1e-12)
	assert.Equal(t, chem.MustParse("H2O"), ref.Composition)
}

func TestBuildReference_UnknownSpecies(t *testing.T) {
	_, err := condition.BuildReference(condition.ReferenceSpec{Formula: "Xy2", Energy: -1}, "A")
	assert.ErrorIs(t, err, chem.ErrUnknownSpecies)
}

// After filtering, each reference composition appears exactly once in the
// pool — as the fixed-energy reference, never as a computed entry.
func TestFilterForCondition_ExactlyOnce(t *testing.T) {
	cond := hydrogenRich()
	pool := []entry.Entry{
		mk("BaZrO3", -42.0, "a"),
		mk("H2O", -14.2, "computed-water"), // must lose to the reference
		mk("H2", -6.7, "computed-h2"),
		mk("H4", -13.5, "computed-h4"), // same species as H2, also removed
		mk("BaO", -12.0, "b"),
	}

	out, err := condition.FilterForCondition(pool, cond)
	require.NoError(t, err)

	counts := map[string]int{}
	for _, e := range out {
		counts[e.Composition.Fingerprint()]++
	}
	for _, spec := range cond.References {
		fp := chem.MustParse(spec.Formula).Fingerprint()
		assert.Equal(t, 1, counts[fp], spec.Formula)
	}

	// The surviving representative is the reference, with the fixed energy.
	for _, e := range out {
		if e.Composition.Fingerprint() == chem.MustParse("H2O").Fingerprint() {
			assert.Equal(t, entry.Reference, e.Kind)
			assert.InDelta(t, -16.054, e.Energy(), 1e-12)
		}
	}

	// Non-reservoir entries pass through untouched.
	assert.Equal(t, "a", out[0].SourceID)
	assert.Equal(t, "b", out[1].SourceID)
}

func TestFilterForCondition_PureInput(t *testing.T) {
	cond := hydrogenRich()
	pool := []entry.Entry{mk("H2O", -14.2, "w"), mk("BaO", -12.0, "b")}
	snapshot := make([]entry.Entry, len(pool))
	copy(snapshot, pool)

	_, err := condition.FilterForCondition(pool, cond)
	require.NoError(t, err)
	assert.Equal(t, snapshot, pool)
}

func TestCondition_Validate(t *testing.T) {
	ok := hydrogenRich()
	assert.NoError(t, ok.Validate())

	bad := hydrogenRich()
	bad.References = append(bad.References, condition.ReferenceSpec{Formula: "Qq7"})
	assert.Error(t, bad.Validate())

	unlabeled := hydrogenRich()
	unlabeled.Label = ""
	assert.Error(t, unlabeled.Validate())
}

func TestOpenElements_Sorted(t *testing.T) {
	cond := hydrogenRich()
	assert.Equal(t, []chem.Element{"H", "O"}, cond.OpenElements())
}
