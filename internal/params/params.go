package params

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RunParameters is the validated parameter record of an annealing run.
// It is immutable once returned by Validate or Parse.
type RunParameters struct {
	TemperatureList        []float64 `json:"temperature_list" yaml:"temperature_list"`
	MCSteps                int       `json:"mc_steps" yaml:"mc_steps"`
	NumberOfMolecules      int       `json:"number_of_molecules" yaml:"number_of_molecules"`
	FFFramework            string    `json:"ff_framework" yaml:"ff_framework"`
	FFSeparateInteractions bool      `json:"ff_separate_interactions" yaml:"ff_separate_interactions"`
	FFMixingRule           string    `json:"ff_mixing_rule" yaml:"ff_mixing_rule"`
	FFTailCorrections      bool      `json:"ff_tail_corrections" yaml:"ff_tail_corrections"`
	FFShifted              bool      `json:"ff_shifted" yaml:"ff_shifted"`
	FFCutoff               float64   `json:"ff_cutoff" yaml:"ff_cutoff"`
}

// Defaults returns the parameters obtained from an empty document
func Defaults() RunParameters {
	p, err := Validate(nil)
	if err != nil {
		panic(fmt.Sprintf("params: schema defaults are invalid: %v", err))
	}
	return p
}

// Parse decodes a YAML (or JSON) document and validates it.
func Parse(data []byte) (RunParameters, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RunParameters{}, &ValidationError{Reason: fmt.Sprintf("document is not a mapping: %v", err)}
	}
	return Validate(doc)
}

// Validate merges doc with the schema defaults and returns the typed parameters.
// Unknown keys, type mismatches and out-of-range values yield a *ValidationError.
func Validate(doc map[string]any) (RunParameters, error) {
	unknown := make([]string, 0)
	for key := range doc {
		if _, ok := lookupField(key); !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return RunParameters{}, fieldError(unknown[0], "unknown field (allowed: %s)", allowedNames())
	}

	merged := make(map[string]any, len(schema))
	for _, f := range schema {
		raw, ok := doc[f.Name]
		if !ok {
			raw = f.Default
		}
		v, err := coerce(f.Name, f.Kind, raw)
		if err != nil {
			return RunParameters{}, err
		}
		merged[f.Name] = v
	}

	p := RunParameters{
		TemperatureList:        merged[FieldTemperatureList].([]float64),
		MCSteps:                merged[FieldMCSteps].(int),
		NumberOfMolecules:      merged[FieldNumberOfMolecules].(int),
		FFFramework:            merged[FieldFFFramework].(string),
		FFSeparateInteractions: merged[FieldFFSeparateInteractions].(bool),
		FFMixingRule:           merged[FieldFFMixingRule].(string),
		FFTailCorrections:      merged[FieldFFTailCorrections].(bool),
		FFShifted:              merged[FieldFFShifted].(bool),
		FFCutoff:               merged[FieldFFCutoff].(float64),
	}
	if err := p.check(); err != nil {
		return RunParameters{}, err
	}
	return p, nil
}

func (p RunParameters) check() error {
	if len(p.TemperatureList) == 0 {
		return fieldError(FieldTemperatureList, "must contain at least one temperature")
	}
	for i, temp := range p.TemperatureList {
		if temp <= 0 {
			return fieldError(FieldTemperatureList, "item %d: temperature must be positive, got %v", i, temp)
		}
	}
	if p.MCSteps <= 0 {
		return fieldError(FieldMCSteps, "must be positive, got %d", p.MCSteps)
	}
	if p.NumberOfMolecules <= 0 {
		return fieldError(FieldNumberOfMolecules, "must be positive, got %d", p.NumberOfMolecules)
	}
	if strings.TrimSpace(p.FFFramework) == "" {
		return fieldError(FieldFFFramework, "cannot be empty")
	}
	if !mixingRules[p.FFMixingRule] {
		return fieldError(FieldFFMixingRule, "must be Lorentz-Berthelot or Jorgensen, got %q", p.FFMixingRule)
	}
	if p.FFCutoff <= 0 {
		return fieldError(FieldFFCutoff, "must be positive, got %v", p.FFCutoff)
	}
	return nil
}

// Map returns the parameters as a fully explicit document. Validate(p.Map()) == p.
func (p RunParameters) Map() map[string]any {
	return map[string]any{
		FieldTemperatureList:        append([]float64(nil), p.TemperatureList...),
		FieldMCSteps:                p.MCSteps,
		FieldNumberOfMolecules:      p.NumberOfMolecules,
		FieldFFFramework:            p.FFFramework,
		FieldFFSeparateInteractions: p.FFSeparateInteractions,
		FieldFFMixingRule:           p.FFMixingRule,
		FieldFFTailCorrections:      p.FFTailCorrections,
		FieldFFShifted:              p.FFShifted,
		FieldFFCutoff:               p.FFCutoff,
	}
}

func allowedNames() string {
	names := make([]string, 0, len(schema))
	for _, f := range Describe() {
		names = append(names, f.Name)
	}
	return strings.Join(names, ", ")
}
