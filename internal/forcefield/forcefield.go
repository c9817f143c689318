// Package forcefield writes the force-field definition files the simulator reads
// for a molecule loaded into a framework.
package forcefield

import (
	"fmt"
	"math"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/GoSim-25-26J-441/annealing-core/internal/catalog"
	"github.com/GoSim-25-26J-441/annealing-core/internal/params"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

// File names written by Build
const (
	MixingRulesFile = "force_field_mixing_rules.def"
	PseudoAtomsFile = "pseudo_atoms.def"
	OverridesFile   = "force_field.def"
)

// DefaultCacheSize is the number of distinct builds kept by NewBuilder when size <= 0
const DefaultCacheSize = 64

// FileSet maps file names to contents. It must not be modified once returned by Build.
type FileSet map[string]string

// Names returns the file names, sorted
func (fs FileSet) Names() []string {
	names := make([]string, 0, len(fs))
	for n := range fs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MoleculeFile returns the name of the molecule definition file
func MoleculeFile(molecule string) string {
	return molecule + ".def"
}

// cacheKey holds everything Build output depends on
type cacheKey struct {
	molecule   string
	forcefield string
	framework  string
	mixing     string
	shifted    bool
	tail       bool
	separate   bool
}

// Builder turns a molecule and run parameters into a FileSet. Results are memoised
// across runs; Builder is safe for concurrent use.
type Builder struct {
	catalog *catalog.Catalog
	cache   *lru.Cache[cacheKey, FileSet]
}

// NewBuilder creates a builder over cat keeping up to size results
func NewBuilder(cat *catalog.Catalog, size int) (*Builder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, FileSet](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create force field cache: %w", err)
	}
	return &Builder{catalog: cat, cache: cache}, nil
}

// Build returns the force-field files for molecule m under parameters p
func (b *Builder) Build(m models.MoleculeSpec, p params.RunParameters) (FileSet, error) {
	key := cacheKey{
		molecule:   m.Name,
		forcefield: m.Forcefield,
		framework:  p.FFFramework,
		mixing:     p.FFMixingRule,
		shifted:    p.FFShifted,
		tail:       p.FFTailCorrections,
		separate:   p.FFSeparateInteractions,
	}
	if fs, ok := b.cache.Get(key); ok {
		logger.Debug("force field cache hit", "molecule", m.Name, "ff_framework", p.FFFramework)
		return fs, nil
	}

	molFF, err := b.catalog.MoleculeForceField(m.Name, m.Forcefield)
	if err != nil {
		return nil, err
	}
	fwTypes, err := b.catalog.FrameworkAtomTypes(p.FFFramework)
	if err != nil {
		return nil, err
	}

	fs := FileSet{
		MixingRulesFile:      mixingRules(fwTypes, molFF, p),
		PseudoAtomsFile:      pseudoAtoms(fwTypes, molFF),
		OverridesFile:        overrides(fwTypes, molFF, p),
		MoleculeFile(m.Name): moleculeDefinition(m, molFF),
	}
	b.cache.Add(key, fs)
	logger.Debug("force field built", "molecule", m.Name, "ff_framework", p.FFFramework, "files", len(fs))
	return fs, nil
}

// CacheLen returns the number of memoised builds
func (b *Builder) CacheLen() int {
	return b.cache.Len()
}

func frameworkType(element string) string {
	return element + "_"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func mixingRules(fw map[string]catalog.AtomType, mol *catalog.MoleculeForceField, p params.RunParameters) string {
	var sb strings.Builder
	sb.WriteString("# general rule for shifted vs truncated\n")
	if p.FFShifted {
		sb.WriteString("shifted\n")
	} else {
		sb.WriteString("truncated\n")
	}
	sb.WriteString("# general rule tailcorrections\n")
	sb.WriteString(yesNo(p.FFTailCorrections) + "\n")

	elements := sortedElements(fw)
	types := mol.TypeNames()
	fmt.Fprintf(&sb, "# number of defined interactions\n%d\n", len(elements)+len(types))
	sb.WriteString("# type interaction, parameters\n")
	for _, el := range elements {
		writeInteraction(&sb, frameworkType(el), fw[el])
	}
	for _, name := range types {
		writeInteraction(&sb, name, mol.AtomTypes[name])
	}
	sb.WriteString("# general mixing rule for Lennard-Jones\n")
	sb.WriteString(p.FFMixingRule + "\n")
	return sb.String()
}

func writeInteraction(sb *strings.Builder, name string, at catalog.AtomType) {
	if at.Epsilon == 0 && at.Sigma == 0 {
		fmt.Fprintf(sb, "%-12s none\n", name)
		return
	}
	fmt.Fprintf(sb, "%-12s lennard-jones %10.5f %8.5f\n", name, at.Epsilon, at.Sigma)
}

func pseudoAtoms(fw map[string]catalog.AtomType, mol *catalog.MoleculeForceField) string {
	var sb strings.Builder
	elements := sortedElements(fw)
	types := mol.TypeNames()
	fmt.Fprintf(&sb, "# number of pseudo atoms\n%d\n", len(elements)+len(types))
	sb.WriteString("#type print as chem oxidation mass charge polarization B-factor radii connectivity anisotropic anisotropic-type tinker-type\n")
	for _, el := range elements {
		fmt.Fprintf(&sb, "%-12s yes %-3s %-3s 0 %10.5f %9.6f 0.0 1.0 1.0 0 0 relative 0\n",
			frameworkType(el), el, el, fw[el].Mass, 0.0)
	}
	for _, name := range types {
		el := catalog.Site{Type: name}.Symbol()
		at := mol.AtomTypes[name]
		fmt.Fprintf(&sb, "%-12s yes %-3s %-3s 0 %10.5f %9.6f 0.0 1.0 1.0 0 0 relative 0\n",
			name, el, el, at.Mass, at.Charge)
	}
	return sb.String()
}

// overrides writes force_field.def. With separate interactions every framework-molecule
// pair is given explicitly, mixing the framework element with the molecule site as
// described by the framework force field, so the molecule force field only governs
// molecule-molecule interactions.
func overrides(fw map[string]catalog.AtomType, mol *catalog.MoleculeForceField, p params.RunParameters) string {
	var sb strings.Builder
	sb.WriteString("# rules to overwrite\n0\n")
	if !p.FFSeparateInteractions {
		sb.WriteString("# number of defined interactions\n0\n")
		sb.WriteString("# mixing rules to overwrite\n0\n")
		return sb.String()
	}

	type pair struct {
		a, b string
		eps  float64
		sig  float64
	}
	var pairs []pair
	elements := sortedElements(fw)
	for _, name := range mol.TypeNames() {
		site := mol.AtomTypes[name]
		if site.Epsilon == 0 && site.Sigma == 0 {
			continue
		}
		if el, ok := fw[catalog.Site{Type: name}.Symbol()]; ok {
			site = el
		}
		for _, fel := range elements {
			eps, sig := mix(p.FFMixingRule, fw[fel], site)
			pairs = append(pairs, pair{a: frameworkType(fel), b: name, eps: eps, sig: sig})
		}
	}
	fmt.Fprintf(&sb, "# number of defined interactions\n%d\n", len(pairs))
	sb.WriteString("# type type2 interaction\n")
	for _, pr := range pairs {
		fmt.Fprintf(&sb, "%-12s %-12s lennard-jones %10.5f %8.5f\n", pr.a, pr.b, pr.eps, pr.sig)
	}
	sb.WriteString("# mixing rules to overwrite\n0\n")
	return sb.String()
}

// mix combines two Lennard-Jones parameter sets
func mix(rule string, a, b catalog.AtomType) (eps, sig float64) {
	eps = math.Sqrt(a.Epsilon * b.Epsilon)
	if rule == "Jorgensen" {
		return eps, math.Sqrt(a.Sigma * b.Sigma)
	}
	return eps, (a.Sigma + b.Sigma) / 2
}

func moleculeDefinition(m models.MoleculeSpec, mol *catalog.MoleculeForceField) string {
	var sb strings.Builder
	cc := mol.CriticalConstants
	n := len(mol.AtomicPositions)
	sb.WriteString("# critical constants: Temperature [T], Pressure [Pa], and Acentric factor [-]\n")
	fmt.Fprintf(&sb, "%g\n%g\n%g\n", cc.Tc, cc.Pc, cc.Af)
	fmt.Fprintf(&sb, "# Number Of Atoms\n%d\n", n)
	sb.WriteString("# Number of groups\n1\n")
	fmt.Fprintf(&sb, "# %s-group\nrigid\n", m.Name)
	fmt.Fprintf(&sb, "# number of atoms\n%d\n", n)
	sb.WriteString("# atomic positions\n")
	for i, s := range mol.AtomicPositions {
		fmt.Fprintf(&sb, "%d %-10s %10.5f %10.5f %10.5f\n", i, s.Type, s.Position[0], s.Position[1], s.Position[2])
	}
	sb.WriteString("# Chiral centers Bond  BondDipoles Bend  UrayBradley InvBend  Torsion Imp. Torsion Bond/Bond Stretch/Bend Bend/Bend Stretch/Torsion Bend/Torsion IntraVDW IntraCoulomb\n")
	sb.WriteString("               0    0            0    0            0       0        0            0         0            0         0               0            0        0            0\n")
	sb.WriteString("# Number of config moves\n0\n")
	return sb.String()
}

func sortedElements(fw map[string]catalog.AtomType) []string {
	out := make([]string, 0, len(fw))
	for el := range fw {
		out = append(out, el)
	}
	sort.Strings(out)
	return out
}
