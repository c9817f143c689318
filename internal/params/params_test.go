package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	p := Defaults()
	assert.Equal(t, []float64{300, 250, 200, 250, 100, 50}, p.TemperatureList)
	assert.Equal(t, 1000, p.MCSteps)
	assert.Equal(t, 1, p.NumberOfMolecules)
	assert.Equal(t, "UFF", p.FFFramework)
	assert.Equal(t, "Lorentz-Berthelot", p.FFMixingRule)
	assert.True(t, p.FFTailCorrections)
	assert.False(t, p.FFShifted)
	assert.False(t, p.FFSeparateInteractions)
	assert.Equal(t, 12.0, p.FFCutoff)
}

func TestParseMergesDefaults(t *testing.T) {
	p, err := Parse([]byte("temperature_list: [300, 100]\nmc_steps: 1000\nnumber_of_molecules: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, []float64{300, 100}, p.TemperatureList)
	assert.Equal(t, 12.0, p.FFCutoff)
}

func TestParseJSON(t *testing.T) {
	p, err := Parse([]byte(`{"mc_steps": 2000.0, "ff_cutoff": 10, "temperature_list": [500]}`))
	require.NoError(t, err)
	assert.Equal(t, 2000, p.MCSteps)
	assert.Equal(t, 10.0, p.FFCutoff)
	assert.Equal(t, []float64{500}, p.TemperatureList)
}

func TestExplicitAndDefaultDocumentsAgree(t *testing.T) {
	implicit, err := Validate(map[string]any{"temperature_list": []any{300, 100}})
	require.NoError(t, err)

	explicit, err := Validate(implicit.Map())
	require.NoError(t, err)
	assert.Equal(t, implicit, explicit)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		doc   map[string]any
		field string
	}{
		{"mistyped mc_steps", map[string]any{"mc_steps": "abc"}, FieldMCSteps},
		{"fractional mc_steps", map[string]any{"mc_steps": 10.5}, FieldMCSteps},
		{"unknown key", map[string]any{"pressure": 1.0}, "pressure"},
		{"empty schedule", map[string]any{"temperature_list": []any{}}, FieldTemperatureList},
		{"schedule item type", map[string]any{"temperature_list": []any{300, "cold"}}, FieldTemperatureList},
		{"schedule not a list", map[string]any{"temperature_list": 300}, FieldTemperatureList},
		{"negative temperature", map[string]any{"temperature_list": []any{-5}}, FieldTemperatureList},
		{"zero molecules", map[string]any{"number_of_molecules": 0}, FieldNumberOfMolecules},
		{"zero mc_steps", map[string]any{"mc_steps": 0}, FieldMCSteps},
		{"zero cutoff", map[string]any{"ff_cutoff": 0}, FieldFFCutoff},
		{"bool as int", map[string]any{"number_of_molecules": true}, FieldNumberOfMolecules},
		{"bad mixing rule", map[string]any{"ff_mixing_rule": "geometric"}, FieldFFMixingRule},
		{"cutoff string", map[string]any{"ff_cutoff": "12"}, FieldFFCutoff},
		{"shifted not bool", map[string]any{"ff_shifted": "yes"}, FieldFFShifted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.doc)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestParseRejectsNonMapping(t *testing.T) {
	_, err := Parse([]byte("- 1\n- 2\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestDescribe(t *testing.T) {
	fields := Describe()
	require.Len(t, fields, 9)
	for i := 1; i < len(fields); i++ {
		assert.Less(t, fields[i-1].Name, fields[i].Name)
	}
	for _, f := range fields {
		assert.NotEmpty(t, f.Description, f.Name)
	}
}
