package structure

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hkust1Fragment = `# fragment with a trailing comment
data_HKUST-1
_symmetry_space_group_name_H-M    'P 1'
_cell_length_a   26.343(2)
_cell_length_b   26.343(2)
_cell_length_c   26.343(2)
_cell_angle_alpha 90
_cell_angle_beta  90
_cell_angle_gamma 90

loop_
_symmetry_equiv_pos_as_xyz
'x, y, z'

loop_
_atom_site_label
_atom_site_type_symbol
_atom_site_fract_x
_atom_site_fract_y
_atom_site_fract_z
_atom_site_charge
Cu1 Cu 0.2853 0.2853 0.0000  1.098
O1  O  0.3162 0.2412 0.0525 -0.665
C1  ?  0.3221 0.1779 0.0000  0.889
`

func TestReadCIF(t *testing.T) {
	s, err := ReadCIF(strings.NewReader(hkust1Fragment))
	require.NoError(t, err)

	assert.Equal(t, "HKUST-1", s.Name)
	assert.InDelta(t, 26.343, s.Cell.Lengths()[0], 1e-9)
	require.Len(t, s.Atoms, 3)
	assert.True(t, s.HasCharges)

	assert.Equal(t, "Cu1", s.Atoms[0].Label)
	assert.Equal(t, "Cu", s.Atoms[0].Symbol)
	assert.InDelta(t, 0.2853*26.343, s.Atoms[0].Position[0], 1e-9)
	assert.InDelta(t, -0.665, s.Atoms[1].Charge, 1e-12)
	assert.Equal(t, "C", s.Atoms[2].Symbol)
}

func TestReadCIFCartesianWithoutCharges(t *testing.T) {
	doc := `data_box
_cell_length_a 10
_cell_length_b 10
_cell_length_c 10
_cell_angle_alpha 90
_cell_angle_beta 90
_cell_angle_gamma 90
loop_
_atom_site_label
_atom_site_Cartn_x
_atom_site_Cartn_y
_atom_site_Cartn_z
Ar1 1.0 2.0 3.0
`
	s, err := ReadCIFBytes([]byte(doc))
	require.NoError(t, err)
	require.Len(t, s.Atoms, 1)
	assert.False(t, s.HasCharges)
	assert.Equal(t, "Ar", s.Atoms[0].Symbol)
	assert.InDelta(t, 2.0, s.Atoms[0].Position[1], 1e-12)
}

func TestReadCIFErrors(t *testing.T) {
	_, err := ReadCIF(strings.NewReader("data_x\n_cell_length_a 10\n"))
	assert.ErrorIs(t, err, ErrCIF)

	_, err = ReadCIF(strings.NewReader(strings.Replace(hkust1Fragment, "26.343(2)", "abc", 1)))
	assert.ErrorIs(t, err, ErrCIF)

	_, err = ReadCIF(strings.NewReader(strings.Replace(hkust1Fragment, "_cell_length_b   26.343(2)", "_cell_length_b 0", 1)))
	assert.ErrorIs(t, err, ErrGeometry)

	_, err = ReadCIF(strings.NewReader("data_x\n;\nnever closed\n"))
	assert.ErrorIs(t, err, ErrCIF)

	_, err = ReadCIFBytes([]byte("data_x\nloop_\nfoo bar\n"))
	assert.ErrorIs(t, err, ErrCIF)
}

func TestWriteCIFRoundTrip(t *testing.T) {
	orig, err := ReadCIF(strings.NewReader(hkust1Fragment))
	require.NoError(t, err)

	data, err := CIFBytes(orig)
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_HKUST-1")
	assert.Contains(t, string(data), "_atom_site_charge")

	back, err := ReadCIFBytes(data)
	require.NoError(t, err)
	require.Len(t, back.Atoms, len(orig.Atoms))
	for i := range orig.Atoms {
		assert.Equal(t, orig.Atoms[i].Symbol, back.Atoms[i].Symbol)
		assert.InDelta(t, orig.Atoms[i].Charge, back.Atoms[i].Charge, 1e-6)
		for k := 0; k < 3; k++ {
			assert.InDelta(t, orig.Atoms[i].Position[k], back.Atoms[i].Position[k], 1e-5)
		}
	}
}

func TestWriteCIFOmitsChargesWhenAbsent(t *testing.T) {
	s := &Structure{Cell: cubic(8), Atoms: []Atom{{Symbol: "N"}}}
	data, err := CIFBytes(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "_atom_site_charge")
	assert.Contains(t, string(data), "data_structure")
}
