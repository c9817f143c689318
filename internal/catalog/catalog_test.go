package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{"ar", "ch4", "co2", "h2o", "kr", "n2", "xe"}, c.MoleculeNames())
	assert.Equal(t, []string{"DREIDING", "UFF"}, c.FrameworkNames())

	co2, err := c.Molecule("co2")
	require.NoError(t, err)
	assert.Equal(t, models.MoleculeSpec{
		Name: "co2", Forcefield: "TraPPE", MolSatDens: 21.2, ProbeRadius: 1.525,
		Charged: true, SingleBead: false,
	}, co2)

	ch4, err := c.Molecule("ch4")
	require.NoError(t, err)
	assert.True(t, ch4.SingleBead)
	assert.False(t, ch4.Charged)
}

func TestMoleculeNotFound(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = c.Molecule("unobtainium")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.MoleculeForceField("co2", "OPLS")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Framework("MMFF")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSymbolsKeepDummySites(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	tests := []struct {
		molecule string
		want     []string
	}{
		{"co2", []string{"O", "C", "O"}},
		{"n2", []string{"N", "M", "N"}},
		{"h2o", []string{"O", "H", "H", "M"}},
		{"ch4", []string{"C"}},
	}
	for _, tt := range tests {
		m, err := c.Molecule(tt.molecule)
		require.NoError(t, err)
		got, err := c.Symbols(m)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.molecule)
	}

	_, err = c.Symbols(models.MoleculeSpec{Name: "co2", Forcefield: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFrameworkAtomTypesFallback(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	types, err := c.FrameworkAtomTypes("DREIDING")
	require.NoError(t, err)
	assert.InDelta(t, 47.86, types["C"].Epsilon, 1e-12, "own parameters win")
	assert.InDelta(t, 2.52, types["Cu"].Epsilon, 1e-12, "metals come from UFF")

	uff, err := c.FrameworkAtomTypes("UFF")
	require.NoError(t, err)
	assert.InDelta(t, 52.84, uff["C"].Epsilon, 1e-12)
}

const customMolecules = `
ne:
  forcefield: simple
  charged: false
  singlebead: true
`

const customForceFields = `
molecules:
  ne:
    simple:
      atom_types:
        Ne_ne: {epsilon: 32.8, sigma: 2.8, mass: 20.18}
      atomic_positions:
        - [Ne_ne, 0, 0, 0]
frameworks:
  LJ:
    atom_types:
      C: {epsilon: 50, sigma: 3.4}
`

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	molPath := filepath.Join(dir, "molecules.yaml")
	ffPath := filepath.Join(dir, "forcefields.yaml")
	require.NoError(t, os.WriteFile(molPath, []byte(customMolecules), 0o644))
	require.NoError(t, os.WriteFile(ffPath, []byte(customForceFields), 0o644))

	c, err := LoadFiles(molPath, ffPath)
	require.NoError(t, err)

	ne, err := c.Molecule("ne")
	require.NoError(t, err)
	assert.Equal(t, "ne", ne.Name, "name defaults to the key")

	_, err = LoadFiles(filepath.Join(dir, "missing.yaml"), ffPath)
	assert.Error(t, err)
}

func TestLoadRejectsInconsistentData(t *testing.T) {
	tests := []struct {
		name      string
		molecules string
		ff        string
	}{
		{"missing force field", customMolecules, "frameworks: {}\n"},
		{"site without atom type", customMolecules, `
molecules:
  ne:
    simple:
      atom_types: {}
      atomic_positions:
        - [Ne_ne, 0, 0, 0]
`},
		{"bad position", customMolecules, `
molecules:
  ne:
    simple:
      atom_types:
        Ne_ne: {epsilon: 1, sigma: 1}
      atomic_positions:
        - [Ne_ne, 0, zero, 0]
`},
		{"name mismatch", "ne:\n  name: he\n  forcefield: simple\n", customForceFields},
		{"unknown fallback", customMolecules, customForceFields + "  X:\n    fallback: Y\n    atom_types:\n      C: {epsilon: 1, sigma: 1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.molecules), []byte(tt.ff))
			assert.Error(t, err)
		})
	}
}
