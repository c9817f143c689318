// Package structure holds periodic atomic structures: the framework that hosts the
// adsorbate, the adsorbate geometry recovered from a restart listing, and their merge.
package structure

import (
	"math"
	"regexp"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// wrapEps keeps coordinates that sit numerically on the upper cell face inside the cell
const wrapEps = 1e-7

// Atom is one atomic site in cartesian coordinates
type Atom struct {
	Label    string
	Symbol   string
	Position utils.Vec3
	Charge   float64
}

// Structure is a periodic atomic structure
type Structure struct {
	Name       string
	Cell       Cell
	Atoms      []Atom
	HasCharges bool
}

// Clone returns a deep copy
func (s *Structure) Clone() *Structure {
	out := *s
	out.Atoms = append([]Atom(nil), s.Atoms...)
	return &out
}

// Symbols returns the element symbols in site order
func (s *Structure) Symbols() []string {
	out := make([]string, len(s.Atoms))
	for i, a := range s.Atoms {
		out[i] = a.Symbol
	}
	return out
}

// Wrap moves every atom into the cell, in place. Fractional coordinates end up in
// [-1e-7, 1-1e-7) along each axis.
func (s *Structure) Wrap() error {
	if err := s.Cell.Validate(); err != nil {
		return err
	}
	for i := range s.Atoms {
		f := s.Cell.ToFractional(s.Atoms[i].Position)
		for k := 0; k < 3; k++ {
			v := f[k] + wrapEps
			f[k] = v - math.Floor(v) - wrapEps
		}
		s.Atoms[i].Position = s.Cell.ToCartesian(f)
	}
	return nil
}

// Merge returns a new structure with the host cell, the host atoms followed by the
// guest atoms. Guest positions are taken as they are, in cartesian coordinates.
func Merge(host, guest *Structure) *Structure {
	out := &Structure{
		Name:       host.Name,
		Cell:       host.Cell,
		Atoms:      make([]Atom, 0, len(host.Atoms)+len(guest.Atoms)),
		HasCharges: host.HasCharges || guest.HasCharges,
	}
	out.Atoms = append(out.Atoms, host.Atoms...)
	out.Atoms = append(out.Atoms, guest.Atoms...)
	return out
}

var leadingElement = regexp.MustCompile(`^[A-Z][a-z]?`)

// SymbolFromLabel derives an element symbol from a site label such as "Cu1" or "O_co2".
func SymbolFromLabel(label string) string {
	return leadingElement.FindString(label)
}
