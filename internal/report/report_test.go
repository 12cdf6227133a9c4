package report_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/phasehull/internal/chem"
	"github.com/talgya/phasehull/internal/engine"
	"github.com/talgya/phasehull/internal/entry"
	"github.com/talgya/phasehull/internal/hull"
	"github.com/talgya/phasehull/internal/report"
)

func fixtureResults() []engine.ConditionResult {
	return []engine.ConditionResult{
		{
			Label:       "A",
			Description: "Hydrogen-rich",
			Stability: &hull.Result{
				EnergyAboveHull:     0.0123,
				TargetEnergyPerAtom: -8.46,
				GrandEnergyPerAtom:  -6.91,
				Decomposition:       map[string]float64{"BaO3Zr": 1},
			},
			StablePhases: []string{"BaO", "BaO3Zr", "O2Zr"},
		},
		{
			Label: "X",
			Err:   errors.New("hull: insufficient entries to form a hull"),
		},
	}
}

func fixtureTarget() entry.Entry {
	return entry.Entry{
		Kind:        entry.Computed,
		Composition: chem.MustParse("Ba8Zr8O24"),
		EnergyRaw:   -338.71584216,
		Corrected:   true,
		SourceID:    "target",
	}
}

func TestNew(t *testing.T) {
	r := report.New(fixtureTarget(), entry.SchemeVersion, fixtureResults())

	assert.NotEmpty(t, r.RunID)
	assert.Equal(t, "BaO3Zr", r.Target)
	assert.InDelta(t, -338.71584216, r.TargetEnergy, 1e-9)
	assert.Equal(t, entry.SchemeVersion, r.SchemeVersion)
	assert.False(t, r.GeneratedAt.IsZero())
	require.Len(t, r.Conditions, 2)

	ok := r.Conditions[0]
	require.NotNil(t, ok.EnergyAboveHull)
	assert.InDelta(t, 0.0123, *ok.EnergyAboveHull, 1e-12)
	assert.Empty(t, ok.Error)
	assert.Equal(t, []string{"BaO", "BaO3Zr", "O2Zr"}, ok.StablePhases)

	failed := r.Conditions[1]
	assert.Nil(t, failed.EnergyAboveHull)
	assert.Nil(t, failed.Decomposition)
	assert.Contains(t, failed.Error, "insufficient entries")
}

func TestNew_FreshRunIDs(t *testing.T) {
	a := report.New(fixtureTarget(), entry.SchemeVersion, nil)
	b := report.New(fixtureTarget(), entry.SchemeVersion, nil)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestWriteFile(t *testing.T) {
	r := report.New(fixtureTarget(), entry.SchemeVersion, fixtureResults())

	path := filepath.Join(t.TempDir(), "out", "report.json")
	require.NoError(t, r.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var back report.Report
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.RunID, back.RunID)
	require.Len(t, back.Conditions, 2)
	assert.Equal(t, "A", back.Conditions[0].Label)

	// Failed conditions omit the numeric fields entirely.
	assert.NotContains(t, string(data), `"energy_above_hull": null`)
}

func TestRows(t *testing.T) {
	r := report.New(fixtureTarget(), entry.SchemeVersion, fixtureResults())

	rows := r.Rows()
	require.Len(t, rows, 2)

	assert.Equal(t, r.RunID, rows[0].RunID)
	assert.Equal(t, "A", rows[0].Condition)
	assert.Equal(t, "BaO3Zr", rows[0].Target)
	assert.InDelta(t, 0.0123, rows[0].EAboveHull, 1e-12)
	assert.JSONEq(t, `{"BaO3Zr":1}`, rows[0].Decomposition)
	assert.Empty(t, rows[0].Err)

	assert.Equal(t, "X", rows[1].Condition)
	assert.Zero(t, rows[1].EAboveHull)
	assert.Empty(t, rows[1].Decomposition)
	assert.Contains(t, rows[1].Err, "insufficient entries")
}
