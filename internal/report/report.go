// Package report assembles and serializes per-condition stability results.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/phasehull/internal/engine"
	"github.com/talgya/phasehull/internal/entry"
	"github.com/talgya/phasehull/internal/persistence"
)

// ConditionReport is the serialized outcome for one condition. Failed
// conditions carry Error and omit the numeric fields.
type ConditionReport struct {
	Label               string             `json:"label"`
	Description         string             `json:"description,omitempty"`
	EnergyAboveHull     *float64           `json:"energy_above_hull,omitempty"`
	TargetEnergyPerAtom *float64           `json:"target_energy_per_atom,omitempty"`
	GrandEnergyPerAtom  *float64           `json:"grand_energy_per_atom,omitempty"`
	Decomposition       map[string]float64 `json:"decomposition,omitempty"`
	StablePhases        []string           `json:"stable_phases,omitempty"`
	Error               string             `json:"error,omitempty"`
}

// Report is one full run: the target material evaluated under every
// configured condition.
type Report struct {
	RunID         string            `json:"run_id"`
	Target        string            `json:"target"`
	TargetEnergy  float64           `json:"target_energy"`
	SchemeVersion string            `json:"correction_scheme"`
	GeneratedAt   time.Time         `json:"generated_at"`
	Conditions    []ConditionReport `json:"conditions"`
}

// New assembles a report from evaluator output, assigning a fresh run ID.
func New(target entry.Entry, scheme string, results []engine.ConditionResult) Report {
	r := Report{
		RunID:         uuid.NewString(),
		Target:        target.Composition.ReducedFormula(),
		TargetEnergy:  target.Energy(),
		SchemeVersion: scheme,
		GeneratedAt:   time.Now().UTC(),
	}
	for _, cr := range results {
		c := ConditionReport{Label: cr.Label, Description: cr.Description}
		if cr.Err != nil {
			c.Error = cr.Err.Error()
		} else {
			e := cr.Stability.EnergyAboveHull
			tpa := cr.Stability.TargetEnergyPerAtom
			gpa := cr.Stability.GrandEnergyPerAtom
			c.EnergyAboveHull = &e
			c.TargetEnergyPerAtom = &tpa
			c.GrandEnergyPerAtom = &gpa
			c.Decomposition = cr.Stability.Decomposition
			c.StablePhases = cr.StablePhases
		}
		r.Conditions = append(r.Conditions, c)
	}
	return r
}

// WriteFile serializes the report as indented JSON, creating parent
// directories as needed.
func (r Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("report dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Rows converts the report into persistence rows.
func (r Report) Rows() []persistence.ResultRow {
	created := r.GeneratedAt.Format(time.RFC3339)
	rows := make([]persistence.ResultRow, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		row := persistence.ResultRow{
			RunID:       r.RunID,
			Condition:   c.Label,
			Description: c.Description,
			Target:      r.Target,
			Err:         c.Error,
			CreatedAt:   created,
		}
		if c.Error == "" {
			row.EAboveHull = *c.EnergyAboveHull
			row.TargetEPA = *c.TargetEnergyPerAtom
			row.GrandEPA = *c.GrandEnergyPerAtom
			decomp, _ := json.Marshal(c.Decomposition)
			row.Decomposition = string(decomp)
		}
		rows = append(rows, row)
	}
	return rows
}
