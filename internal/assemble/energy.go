package assemble

import (
	"fmt"
	"strconv"

	"github.com/GoSim-25-26J-441/annealing-core/internal/stage"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

// OutputSection is the group of framework_1 output parameters holding the final energies
const OutputSection = "general"

// StageOutput is what energy aggregation needs from one resolved stage
type StageOutput struct {
	Label            string
	Temperature      float64
	OutputParameters map[string]any
}

// NVTDescription describes an NVT stage in the report
func NVTDescription(kelvin float64) string {
	return fmt.Sprintf("NVT simulation at %s K", strconv.FormatFloat(kelvin, 'f', -1, 64))
}

// MinimizationDescription describes the minimization stage in the report
const MinimizationDescription = "Final energy minimization"

// AnyOutput reports whether at least one stage carries output parameters
func AnyOutput(stages ...StageOutput) bool {
	for _, s := range stages {
		if s.OutputParameters != nil {
			return true
		}
	}
	return false
}

// AggregateEnergies builds the energy report: one entry per NVT stage, in the order
// given, then one for the minimization. Every stage must carry every energy key.
func AggregateEnergies(numberOfMolecules int, nvt []StageOutput, minimization StageOutput) (*models.EnergyReport, error) {
	total := len(nvt) + 1
	r := &models.EnergyReport{
		NumberOfMolecules: numberOfMolecules,
		Description:       make([]string, 0, total),
		EnergyUnit:        models.EnergyUnit,
	}
	for _, key := range models.EnergyKeys {
		*r.Series(key) = make([]float64, 0, total)
	}

	add := func(s StageOutput, description string) error {
		values := make([]float64, len(models.EnergyKeys))
		for i, key := range models.EnergyKeys {
			v, err := energy(s, key)
			if err != nil {
				return err
			}
			values[i] = v
		}
		r.Description = append(r.Description, description)
		for i, key := range models.EnergyKeys {
			series := r.Series(key)
			*series = append(*series, values[i])
		}
		return nil
	}

	for _, s := range nvt {
		if err := add(s, NVTDescription(s.Temperature)); err != nil {
			return nil, err
		}
	}
	if err := add(minimization, MinimizationDescription); err != nil {
		return nil, err
	}
	return r, nil
}

func energy(s StageOutput, key string) (float64, error) {
	field := stage.FrameworkSystem + "." + OutputSection + "." + key
	missing := &AssemblyError{Label: s.Label, Field: field, Reason: "missing from output parameters"}

	system, ok := s.OutputParameters[stage.FrameworkSystem].(map[string]any)
	if !ok {
		return 0, missing
	}
	general, ok := system[OutputSection].(map[string]any)
	if !ok {
		return 0, missing
	}
	raw, ok := general[key]
	if !ok {
		return 0, missing
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, &AssemblyError{Label: s.Label, Field: field, Reason: fmt.Sprintf("expected a number, got %T", raw)}
	}
}
