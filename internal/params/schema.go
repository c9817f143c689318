// Package params defines the run-parameter schema of an annealing run: the
// annealing fields plus the force-field fields shared with other workflows.
// Documents are merged with declared defaults, unknown keys are rejected and
// every type mismatch is reported against the offending field.
package params

import (
	"fmt"
	"math"
	"sort"
)

// Kind is the value type accepted for a schema field
type Kind string

const (
	KindInt        Kind = "int"
	KindFloat      Kind = "float"
	KindBool       Kind = "bool"
	KindString     Kind = "string"
	KindNumberList Kind = "list[number]"
)

// Field declares one schema entry
type Field struct {
	Name        string `json:"name"`
	Kind        Kind   `json:"kind"`
	Default     any    `json:"default"`
	Description string `json:"description"`
}

// Field names
const (
	FieldTemperatureList        = "temperature_list"
	FieldMCSteps                = "mc_steps"
	FieldNumberOfMolecules      = "number_of_molecules"
	FieldFFFramework            = "ff_framework"
	FieldFFSeparateInteractions = "ff_separate_interactions"
	FieldFFMixingRule           = "ff_mixing_rule"
	FieldFFTailCorrections      = "ff_tail_corrections"
	FieldFFShifted              = "ff_shifted"
	FieldFFCutoff               = "ff_cutoff"
)

var mixingRules = map[string]bool{
	"Lorentz-Berthelot": true,
	"Jorgensen":         true,
}

var schema = []Field{
	{FieldFFFramework, KindString, "UFF", "Forcefield of the structure (used also as a definition of ff.rad for zeopp)"},
	{FieldFFSeparateInteractions, KindBool, false, "if true use only ff_framework for framework-molecule interactions in the FFBuilder"},
	{FieldFFMixingRule, KindString, "Lorentz-Berthelot", "Mixing rule for the forcefield"},
	{FieldFFTailCorrections, KindBool, true, "Apply tail corrections"},
	{FieldFFShifted, KindBool, false, "Shift or truncate the potential at cutoff"},
	{FieldFFCutoff, KindFloat, 12.0, "CutOff truncation for the VdW interactions (Angstrom)"},
	{FieldTemperatureList, KindNumberList, []float64{300, 250, 200, 250, 100, 50}, "List of decreasing temperatures for the annealing"},
	{FieldMCSteps, KindInt, 1000, "Number of MC cycles"},
	{FieldNumberOfMolecules, KindInt, 1, "Number of molecules loaded in the framework"},
}

// Describe returns the schema fields sorted by name
func Describe() []Field {
	out := make([]Field, len(schema))
	copy(out, schema)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func lookupField(name string) (Field, bool) {
	for _, f := range schema {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// coerce converts a decoded YAML/JSON value to the Go type of kind.
func coerce(field string, kind Kind, v any) (any, error) {
	switch kind {
	case KindInt:
		switch n := v.(type) {
		case int:
			return n, nil
		case int64:
			return int(n), nil
		case uint64:
			return int(n), nil
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				return int(n), nil
			}
			return nil, fieldError(field, "expected int, got non-integral number %v", n)
		}
	case KindFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindNumberList:
		return coerceNumberList(field, v)
	}
	return nil, fieldError(field, "expected %s, got %s", kind, typeName(v))
}

func coerceNumberList(field string, v any) ([]float64, error) {
	switch list := v.(type) {
	case []float64:
		return append([]float64(nil), list...), nil
	case []int:
		out := make([]float64, len(list))
		for i, n := range list {
			out[i] = float64(n)
		}
		return out, nil
	case []any:
		out := make([]float64, len(list))
		for i, item := range list {
			f, ok := toFloat(item)
			if !ok {
				return nil, fieldError(field, "item %d: expected number, got %s", i, typeName(item))
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fieldError(field, "expected %s, got %s", KindNumberList, typeName(v))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int64, uint64:
		return "int"
	case float64, float32:
		return "float"
	case []any:
		return "list"
	case map[string]any:
		return "mapping"
	}
	return fmt.Sprintf("%T", v)
}
