package structure

import (
	"errors"
	"fmt"
	"math"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

const degToRad = math.Pi / 180

// minExtent is the smallest lattice-vector length or perpendicular width treated as non-degenerate.
const minExtent = 1e-8

// ErrGeometry is matched by every GeometryError via errors.Is.
var ErrGeometry = errors.New("degenerate cell geometry")

// GeometryError reports a unit cell that cannot be used for replication or wrapping.
// Axis is -1 when the failure is not specific to one lattice vector.
type GeometryError struct {
	Axis   int
	Reason string
}

func (e *GeometryError) Error() string {
	if e.Axis < 0 {
		return fmt.Sprintf("%s: %s", ErrGeometry, e.Reason)
	}
	return fmt.Sprintf("%s: axis %c: %s", ErrGeometry, "abc"[e.Axis], e.Reason)
}

func (e *GeometryError) Is(target error) bool {
	return target == ErrGeometry
}

// Cell holds the three lattice vectors a, b, c as rows, in Ångström.
type Cell [3]utils.Vec3

// CellFromParameters builds the cell with a along x and b in the xy plane.
func CellFromParameters(a, b, c, alpha, beta, gamma float64) (Cell, error) {
	if a <= 0 || b <= 0 || c <= 0 {
		return Cell{}, &GeometryError{Axis: -1, Reason: fmt.Sprintf("cell lengths must be positive, got %g %g %g", a, b, c)}
	}
	ca, cb, cg := math.Cos(alpha*degToRad), math.Cos(beta*degToRad), math.Cos(gamma*degToRad)
	sg := math.Sin(gamma * degToRad)
	if math.Abs(sg) < minExtent {
		return Cell{}, &GeometryError{Axis: -1, Reason: fmt.Sprintf("gamma of %g degrees makes a and b collinear", gamma)}
	}
	cx := c * cb
	cy := c * (ca - cb*cg) / sg
	cz2 := c*c - cx*cx - cy*cy
	if cz2 <= minExtent {
		return Cell{}, &GeometryError{Axis: 2, Reason: fmt.Sprintf("angles %g %g %g do not describe a cell with volume", alpha, beta, gamma)}
	}
	return Cell{
		{a, 0, 0},
		{b * cg, b * sg, 0},
		{cx, cy, math.Sqrt(cz2)},
	}, nil
}

// Volume returns the signed cell volume a · (b × c)
func (c Cell) Volume() float64 {
	return c[0].Dot(c[1].Cross(c[2]))
}

// Lengths returns |a|, |b|, |c|
func (c Cell) Lengths() [3]float64 {
	return [3]float64{c[0].Norm(), c[1].Norm(), c[2].Norm()}
}

// Angles returns alpha, beta, gamma in degrees
func (c Cell) Angles() [3]float64 {
	angle := func(u, v utils.Vec3) float64 {
		return math.Acos(u.Dot(v)/(u.Norm()*v.Norm())) / degToRad
	}
	return [3]float64{angle(c[1], c[2]), angle(c[0], c[2]), angle(c[0], c[1])}
}

// Validate rejects zero-length lattice vectors and cells without volume
func (c Cell) Validate() error {
	for i, v := range c {
		if v.Norm() < minExtent {
			return &GeometryError{Axis: i, Reason: "lattice vector has zero length"}
		}
	}
	if math.Abs(c.Volume()) < minExtent {
		return &GeometryError{Axis: -1, Reason: "lattice vectors are coplanar"}
	}
	return nil
}

// PerpendicularWidths returns the distance between opposite faces of the cell along each axis
func (c Cell) PerpendicularWidths() ([3]float64, error) {
	if err := c.Validate(); err != nil {
		return [3]float64{}, err
	}
	vol := math.Abs(c.Volume())
	var widths [3]float64
	for i := 0; i < 3; i++ {
		face := c[(i+1)%3].Cross(c[(i+2)%3]).Norm()
		widths[i] = vol / face
	}
	return widths, nil
}

// ReplicationFactors returns how many times the cell must be repeated along each
// axis so that the replicated cell is at least threshold wide in every direction.
// The simulator is given a threshold of twice the cutoff radius so that no
// periodic image interacts with itself.
func ReplicationFactors(c Cell, threshold float64) ([3]int, error) {
	if threshold <= 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return [3]int{}, &GeometryError{Axis: -1, Reason: fmt.Sprintf("threshold must be positive and finite, got %g", threshold)}
	}
	widths, err := c.PerpendicularWidths()
	if err != nil {
		return [3]int{}, err
	}
	var mult [3]int
	for i, w := range widths {
		mult[i] = int(math.Ceil(threshold / w))
	}
	return mult, nil
}

// ToFractional converts a cartesian position to fractional coordinates
func (c Cell) ToFractional(p utils.Vec3) utils.Vec3 {
	vol := c.Volume()
	// rows of the inverse matrix transpose are the reciprocal vectors / volume
	r0 := c[1].Cross(c[2]).Scale(1 / vol)
	r1 := c[2].Cross(c[0]).Scale(1 / vol)
	r2 := c[0].Cross(c[1]).Scale(1 / vol)
	return utils.Vec3{r0.Dot(p), r1.Dot(p), r2.Dot(p)}
}

// ToCartesian converts fractional coordinates to a cartesian position
func (c Cell) ToCartesian(f utils.Vec3) utils.Vec3 {
	return c[0].Scale(f[0]).Add(c[1].Scale(f[1])).Add(c[2].Scale(f[2]))
}
