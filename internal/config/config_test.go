package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/phasehull/internal/config"
)

const sampleYAML = `
target:
  formula: Ba8Zr8O24
  energy: -338.71584216
  run_type: GGA

data_source:
  base_url: https://materials.example.org/api/v1
  api_key_env: PHASEHULL_API_KEY
  timeout_seconds: 30

parallel: true

conditions:
  - label: A
    description: Hydrogen-rich
    chemical_potentials:
      H: -4.024
      O: -8.006
    references:
      - { formula: H2, energy: -8.048 }
      - { formula: O2, energy: -16.012 }
      - { formula: H2O, energy: -16.054 }
    eliminate: [H2, O2, H2O]
    extra_elements: [H, O]

  - label: X
    description: CO2-rich
    chemical_potentials:
      O: -6.166
      C: -20.232
    references:
      - { formula: CO2, energy: -25.556 }
    eliminate: [CO, CO2, O2]
    extra_elements: [C, O]
`

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := config.Load(write(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "Ba8Zr8O24", cfg.Target.Formula)
	assert.InDelta(t, -338.71584216, cfg.Target.Energy, 1e-9)
	assert.True(t, cfg.Parallel)
	require.Len(t, cfg.Conditions, 2)

	a := cfg.Conditions[0]
	assert.Equal(t, "A", a.Label)
	assert.InDelta(t, -4.024, a.ChemPotentials["H"], 1e-12)
	assert.Len(t, a.References, 3)
	assert.Equal(t, []string{"H2", "O2", "H2O"}, a.Eliminate)

	// Defaults fill in when omitted.
	assert.Equal(t, "data/phasehull.db", cfg.Database)
	assert.Equal(t, "data/report.json", cfg.ReportPath)
}

func TestLoad_BadTargetFormula(t *testing.T) {
	bad := `
target: { formula: "??", energy: -1.0 }
conditions:
  - label: A
`
	_, err := config.Load(write(t, bad))
	assert.Error(t, err)
}

func TestLoad_DuplicateLabels(t *testing.T) {
	bad := `
target: { formula: BaZrO3, energy: -42.0 }
conditions:
  - label: A
  - label: A
`
	_, err := config.Load(write(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate condition label")
}

func TestLoad_NoConditions(t *testing.T) {
	bad := `
target: { formula: BaZrO3, energy: -42.0 }
`
	_, err := config.Load(write(t, bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one condition")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
