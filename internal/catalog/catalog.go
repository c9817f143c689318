// Package catalog resolves adsorbate molecules by name and holds the force-field
// data needed to describe them, and the framework, to the simulator.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// DummySymbol is the element symbol of massless placeholder sites
const DummySymbol = "M"

var (
	// ErrNotFound is returned, wrapped, when a molecule or force field is not in the catalog
	ErrNotFound = errors.New("not found in catalog")

	//go:embed data/molecules.yaml
	defaultMolecules []byte
	//go:embed data/forcefields.yaml
	defaultForceFields []byte

	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// CriticalConstants are the critical temperature [K], pressure [Pa] and acentric factor
type CriticalConstants struct {
	Tc float64 `yaml:"tc" json:"tc"`
	Pc float64 `yaml:"pc" json:"pc"`
	Af float64 `yaml:"af" json:"af"`
}

// AtomType holds the non-bonded parameters of one pseudo atom
type AtomType struct {
	Epsilon float64 `yaml:"epsilon" json:"epsilon"`
	Sigma   float64 `yaml:"sigma" json:"sigma"`
	Charge  float64 `yaml:"charge" json:"charge"`
	Mass    float64 `yaml:"mass" json:"mass"`
}

// Site is one atom of a molecule definition
type Site struct {
	Type     string
	Position utils.Vec3
}

// Symbol returns the element symbol, the part of the type before the first '_'
func (s Site) Symbol() string {
	return strings.SplitN(s.Type, "_", 2)[0]
}

// UnmarshalYAML reads a site written as [type, x, y, z]
func (s *Site) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 4 {
		return fmt.Errorf("line %d: atomic position must be [type, x, y, z]", n.Line)
	}
	s.Type = n.Content[0].Value
	for k := 0; k < 3; k++ {
		v, err := strconv.ParseFloat(n.Content[k+1].Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: coordinate %d of %s: %w", n.Line, k, s.Type, err)
		}
		s.Position[k] = v
	}
	return nil
}

// MoleculeForceField is the force-field description of one molecule
type MoleculeForceField struct {
	Description       string              `yaml:"description"`
	CriticalConstants CriticalConstants   `yaml:"critical_constants"`
	AtomTypes         map[string]AtomType `yaml:"atom_types"`
	AtomicPositions   []Site              `yaml:"atomic_positions"`
}

// Symbols returns the element symbol of every site, in definition order
func (f *MoleculeForceField) Symbols() []string {
	out := make([]string, len(f.AtomicPositions))
	for i, s := range f.AtomicPositions {
		out[i] = s.Symbol()
	}
	return out
}

// TypeNames returns the atom type names sorted
func (f *MoleculeForceField) TypeNames() []string {
	return sortedKeys(f.AtomTypes)
}

// FrameworkForceField holds Lennard-Jones parameters per element for framework atoms
type FrameworkForceField struct {
	Description string              `yaml:"description"`
	Fallback    string              `yaml:"fallback,omitempty"`
	AtomTypes   map[string]AtomType `yaml:"atom_types"`
}

type forceFieldFile struct {
	Molecules  map[string]map[string]*MoleculeForceField `yaml:"molecules"`
	Frameworks map[string]*FrameworkForceField           `yaml:"frameworks"`
}

// Catalog is a read-only set of molecules and force fields. It is safe for concurrent use.
type Catalog struct {
	molecules  map[string]models.MoleculeSpec
	molFF      map[string]map[string]*MoleculeForceField
	frameworks map[string]*FrameworkForceField
}

// Default returns the catalog built from the embedded data files
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Load(defaultMolecules, defaultForceFields)
	})
	return defaultCatalog, defaultErr
}

// Load builds a catalog from a molecules document and a force-field document.
func Load(molecules, forcefields []byte) (*Catalog, error) {
	var mols map[string]models.MoleculeSpec
	if err := yaml.Unmarshal(molecules, &mols); err != nil {
		return nil, fmt.Errorf("failed to parse molecules yaml: %w", err)
	}
	var ff forceFieldFile
	if err := yaml.Unmarshal(forcefields, &ff); err != nil {
		return nil, fmt.Errorf("failed to parse forcefields yaml: %w", err)
	}

	c := &Catalog{
		molecules:  make(map[string]models.MoleculeSpec, len(mols)),
		molFF:      ff.Molecules,
		frameworks: ff.Frameworks,
	}
	for key, m := range mols {
		if m.Name == "" {
			m.Name = key
		}
		if m.Name != key {
			return nil, fmt.Errorf("molecule %s: name %q does not match its key", key, m.Name)
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
		c.molecules[key] = m
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// LoadFiles reads Load's two documents from disk
func LoadFiles(moleculesPath, forcefieldsPath string) (*Catalog, error) {
	mols, err := os.ReadFile(moleculesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read molecules file %s: %w", moleculesPath, err)
	}
	ff, err := os.ReadFile(forcefieldsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read forcefields file %s: %w", forcefieldsPath, err)
	}
	return Load(mols, ff)
}

func (c *Catalog) validate() error {
	for name, byTag := range c.molFF {
		for tag, ff := range byTag {
			if ff == nil || len(ff.AtomicPositions) == 0 {
				return fmt.Errorf("molecule %s/%s: no atomic positions", name, tag)
			}
			for _, site := range ff.AtomicPositions {
				if _, ok := ff.AtomTypes[site.Type]; !ok {
					return fmt.Errorf("molecule %s/%s: site type %s has no atom type", name, tag, site.Type)
				}
			}
		}
	}
	for name, fw := range c.frameworks {
		if fw == nil || len(fw.AtomTypes) == 0 {
			return fmt.Errorf("framework force field %s: no atom types", name)
		}
		if fw.Fallback != "" {
			if _, ok := c.frameworks[fw.Fallback]; !ok {
				return fmt.Errorf("framework force field %s: unknown fallback %s", name, fw.Fallback)
			}
		}
	}
	for name, m := range c.molecules {
		if _, err := c.MoleculeForceField(name, m.Forcefield); err != nil {
			return err
		}
	}
	return nil
}

// Molecule resolves a molecule by name
func (c *Catalog) Molecule(name string) (models.MoleculeSpec, error) {
	m, ok := c.molecules[strings.TrimSpace(name)]
	if !ok {
		return models.MoleculeSpec{}, fmt.Errorf("molecule %q: %w", name, ErrNotFound)
	}
	return m, nil
}

// MoleculeNames lists the molecules in the catalog, sorted
func (c *Catalog) MoleculeNames() []string {
	return sortedKeys(c.molecules)
}

// MoleculeForceField returns the force-field definition of molecule under tag
func (c *Catalog) MoleculeForceField(molecule, tag string) (*MoleculeForceField, error) {
	ff, ok := c.molFF[molecule][tag]
	if !ok {
		return nil, fmt.Errorf("force field %s of molecule %s: %w", tag, molecule, ErrNotFound)
	}
	return ff, nil
}

// Symbols returns the element symbols declared for a molecule's sites, dummy sites included.
func (c *Catalog) Symbols(m models.MoleculeSpec) ([]string, error) {
	ff, err := c.MoleculeForceField(m.Name, m.Forcefield)
	if err != nil {
		return nil, err
	}
	return ff.Symbols(), nil
}

// Framework returns a framework force field by name
func (c *Catalog) Framework(name string) (*FrameworkForceField, error) {
	fw, ok := c.frameworks[name]
	if !ok {
		return nil, fmt.Errorf("framework force field %q: %w", name, ErrNotFound)
	}
	return fw, nil
}

// FrameworkNames lists the framework force fields, sorted
func (c *Catalog) FrameworkNames() []string {
	return sortedKeys(c.frameworks)
}

// FrameworkAtomTypes returns the element parameters of a framework force field,
// completed with those of its fallback for elements it does not define.
func (c *Catalog) FrameworkAtomTypes(name string) (map[string]AtomType, error) {
	out := make(map[string]AtomType)
	seen := make(map[string]bool)
	for name != "" {
		if seen[name] {
			return nil, fmt.Errorf("framework force field %s: fallback cycle", name)
		}
		seen[name] = true
		fw, err := c.Framework(name)
		if err != nil {
			return nil, err
		}
		for el, at := range fw.AtomTypes {
			if _, ok := out[el]; !ok {
				out[el] = at
			}
		}
		name = fw.Fallback
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
