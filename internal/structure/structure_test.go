package structure

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

func cubic(a float64) Cell {
	return Cell{{a, 0, 0}, {0, a, 0}, {0, 0, a}}
}

func TestCellFromParametersOrthorhombic(t *testing.T) {
	c, err := CellFromParameters(10, 20, 30, 90, 90, 90)
	require.NoError(t, err)
	assert.InDelta(t, 6000, c.Volume(), 1e-9)
	assert.InDelta(t, 0, c[1][0], 1e-12)
	assert.InDelta(t, 0, c[2][0], 1e-12)

	lengths := c.Lengths()
	angles := c.Angles()
	for k, want := range []float64{10, 20, 30} {
		assert.InDelta(t, want, lengths[k], 1e-9)
		assert.InDelta(t, 90, angles[k], 1e-9)
	}
}

func TestCellFromParametersTriclinic(t *testing.T) {
	c, err := CellFromParameters(7.5, 8.25, 9.1, 80, 95, 110)
	require.NoError(t, err)
	angles := c.Angles()
	assert.InDelta(t, 80, angles[0], 1e-9)
	assert.InDelta(t, 95, angles[1], 1e-9)
	assert.InDelta(t, 110, angles[2], 1e-9)
}

func TestCellFromParametersRejectsDegenerate(t *testing.T) {
	_, err := CellFromParameters(0, 1, 1, 90, 90, 90)
	assert.ErrorIs(t, err, ErrGeometry)

	_, err = CellFromParameters(1, 1, 1, 90, 90, 180)
	assert.ErrorIs(t, err, ErrGeometry)

	// alpha + beta == gamma leaves c in the ab plane
	_, err = CellFromParameters(1, 1, 1, 30, 30, 60)
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestReplicationFactorsCubic(t *testing.T) {
	tests := []struct {
		edge      float64
		threshold float64
		want      [3]int
	}{
		{25.832, 24, [3]int{1, 1, 1}},
		{10, 24, [3]int{3, 3, 3}},
		{12, 24, [3]int{2, 2, 2}},
		{6, 24, [3]int{4, 4, 4}},
	}
	for _, tt := range tests {
		got, err := ReplicationFactors(cubic(tt.edge), tt.threshold)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "edge %g threshold %g", tt.edge, tt.threshold)
	}
}

func TestReplicationFactorsUsesPerpendicularWidth(t *testing.T) {
	// hexagonal cell: a and b are 13 Å but the perpendicular width is 13·sin(60°) ≈ 11.26 Å
	c, err := CellFromParameters(13, 13, 30, 90, 90, 120)
	require.NoError(t, err)
	got, err := ReplicationFactors(c, 24)
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 3, 1}, got)
}

func TestReplicationFactorsIdempotentAndMonotonic(t *testing.T) {
	cells := []Cell{cubic(9.3), {{11, 0, 0}, {3, 9, 0}, {-2, 1.5, 14}}}
	for _, c := range cells {
		for _, cutoff := range []float64{4, 6.5, 12, 14, 20} {
			first, err := ReplicationFactors(c, 2*cutoff)
			require.NoError(t, err)
			again, err := ReplicationFactors(c, 2*cutoff)
			require.NoError(t, err)
			assert.Equal(t, first, again)

			doubled, err := ReplicationFactors(c, 4*cutoff)
			require.NoError(t, err)
			for k := 0; k < 3; k++ {
				assert.GreaterOrEqual(t, doubled[k], first[k], "axis %d cutoff %g", k, cutoff)
			}
		}
	}
}

func TestReplicationFactorsDegenerate(t *testing.T) {
	_, err := ReplicationFactors(Cell{{10, 0, 0}, {0, 0, 0}, {0, 0, 10}}, 24)
	var geoErr *GeometryError
	require.True(t, errors.As(err, &geoErr))
	assert.Equal(t, 1, geoErr.Axis)
	assert.Contains(t, err.Error(), "axis b")

	_, err = ReplicationFactors(Cell{{10, 0, 0}, {0, 10, 0}, {5, 5, 0}}, 24)
	assert.ErrorIs(t, err, ErrGeometry)

	_, err = ReplicationFactors(cubic(10), 0)
	assert.ErrorIs(t, err, ErrGeometry)
	_, err = ReplicationFactors(cubic(10), math.NaN())
	assert.ErrorIs(t, err, ErrGeometry)
}

func TestFractionalRoundTrip(t *testing.T) {
	c := Cell{{11, 0, 0}, {3, 9, 0}, {-2, 1.5, 14}}
	p := utils.Vec3{4.2, -1.7, 8.9}
	back := c.ToCartesian(c.ToFractional(p))
	for k := 0; k < 3; k++ {
		assert.InDelta(t, p[k], back[k], 1e-9)
	}
}

func TestWrap(t *testing.T) {
	s := &Structure{
		Cell: cubic(10),
		Atoms: []Atom{
			{Symbol: "C", Position: utils.Vec3{-1, 12, 5}},
			{Symbol: "O", Position: utils.Vec3{10, 0, 25}},
			{Symbol: "O", Position: utils.Vec3{3, 4, 5}},
		},
	}
	require.NoError(t, s.Wrap())

	want := []utils.Vec3{{9, 2, 5}, {0, 0, 5}, {3, 4, 5}}
	for i, w := range want {
		for k := 0; k < 3; k++ {
			assert.InDelta(t, w[k], s.Atoms[i].Position[k], 1e-6, "atom %d axis %d", i, k)
		}
	}
}

func TestWrapDegenerateCell(t *testing.T) {
	s := &Structure{Atoms: []Atom{{Symbol: "C"}}}
	assert.ErrorIs(t, s.Wrap(), ErrGeometry)
}

func TestMergeKeepsHostCellAndOrder(t *testing.T) {
	host := &Structure{
		Name:  "host",
		Cell:  cubic(20),
		Atoms: []Atom{{Label: "Cu1", Symbol: "Cu"}, {Label: "O1", Symbol: "O"}},
	}
	guest := &Structure{
		Cell:  cubic(5),
		Atoms: []Atom{{Symbol: "C"}, {Symbol: "O"}, {Symbol: "O"}},
	}
	merged := Merge(host, guest)
	assert.Equal(t, host.Cell, merged.Cell)
	assert.Equal(t, []string{"Cu", "O", "C", "O", "O"}, merged.Symbols())
	assert.Equal(t, "host", merged.Name)

	merged.Atoms[0].Symbol = "Zn"
	assert.Equal(t, "Cu", host.Atoms[0].Symbol)
}

func TestClone(t *testing.T) {
	s := &Structure{Cell: cubic(3), Atoms: []Atom{{Symbol: "H"}}}
	c := s.Clone()
	c.Atoms[0].Symbol = "He"
	assert.Equal(t, "H", s.Atoms[0].Symbol)
}

func TestSymbolFromLabel(t *testing.T) {
	assert.Equal(t, "Cu", SymbolFromLabel("Cu12"))
	assert.Equal(t, "O", SymbolFromLabel("O_co2"))
	assert.Equal(t, "C", SymbolFromLabel("C"))
	assert.Equal(t, "", SymbolFromLabel("12"))
}
