package entry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/phasehull/internal/chem"
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

func TestDedup_LowerEnergyWins(t *testing.T) {
	in := []entry.Entry{
		mk("LiO", -5.0, "a"),
		mk("Li2O2", -10.0000001, "b"), // same phase within tolerance (per atom)
		mk("LiO", -4.0, "c"),          // genuinely higher polymorph: kept separately
	}
	out := entry.Dedup(in)

	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].SourceID) // lower energy per atom kept
	assert.Equal(t, "c", out[1].SourceID)
}

func TestDedup_DeterministicAcrossInputOrder(t *testing.T) {
	a := []entry.Entry{mk("Li", 0, "x"), mk("LiO", -5, "y"), mk("O2", -9, "z")}
	b := []entry.Entry{a[2], a[0], a[1]}

	assert.Equal(t, entry.Dedup(a), entry.Dedup(b))
}

func TestDedup_ExactTieKeepsSmallerSourceID(t *testing.T) {
	out := entry.Dedup([]entry.Entry{mk("LiO", -5, "mp-2"), mk("LiO", -5, "mp-1")})
	require.Len(t, out, 1)
	assert.Equal(t, "mp-1", out[0].SourceID)
}

func TestEnergyAccessors(t *testing.T) {
	e := mk("BaZrO3", -40.0, "t")
	e.Correction = -2.0
	assert.InDelta(t, -42.0, e.Energy(), 1e-12)
	assert.InDelta(t, -8.4, e.EnergyPerAtom(), 1e-12)
}

func TestSystemOf(t *testing.T) {
	sys := entry.SystemOf([]entry.Entry{mk("BaZrO3", -40, "a"), mk("H2O", -14, "b")})
	assert.Equal(t, []chem.Element{"Ba", "H", "O", "Zr"}, sys)
}
