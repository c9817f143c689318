// Package stage builds and mutates the parameter document submitted with every
// simulation stage, and renders it in the simulator's input format.
package stage

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FrameworkSystem is the name of the single framework system of every document
const FrameworkSystem = "framework_1"

// Document sections
const (
	SectionGeneralSettings = "GeneralSettings"
	SectionSystem          = "System"
	SectionComponent       = "Component"
)

// Keys set by the builders
const (
	KeySimulationType                   = "SimulationType"
	KeyNumberOfCycles                   = "NumberOfCycles"
	KeyNumberOfInitializationCycles     = "NumberOfInitializationCycles"
	KeyPrintPropertiesEvery             = "PrintPropertiesEvery"
	KeyPrintEvery                       = "PrintEvery"
	KeyRemoveAtomNumberCodeFromLabel    = "RemoveAtomNumberCodeFromLabel"
	KeyForcefield                       = "Forcefield"
	KeyUseChargesFromCIFFile            = "UseChargesFromCIFFile"
	KeyCutOff                           = "CutOff"
	KeyChargeMethod                     = "ChargeMethod"
	KeyEwaldPrecision                   = "EwaldPrecision"
	KeyMaximumNumberOfMinimizationSteps = "MaximumNumberOfMinimizationSteps"
	KeyRMSGradientTolerance             = "RMSGradientTolerance"
	KeyMaxGradientTolerance             = "MaxGradientTolerance"
	KeyRestartFile                      = "RestartFile"

	KeyType                = "type"
	KeyUnitCells           = "UnitCells"
	KeyExternalTemperature = "ExternalTemperature"

	KeyMoleculeDefinition      = "MoleculeDefinition"
	KeyTranslationProbability  = "TranslationProbability"
	KeyReinsertionProbability  = "ReinsertionProbability"
	KeyRotationProbability     = "RotationProbability"
	KeyCreateNumberOfMolecules = "CreateNumberOfMolecules"
	KeyBlockPocketsFileName    = "BlockPocketsFileName"
)

// Block is one keyed group of settings. Values are string, bool, int, int64 or float64.
type Block map[string]any

func (b Block) clone() Block {
	out := make(Block, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Document mirrors the simulator's parameter schema. A run owns one live Document;
// submissions carry a Snapshot of it.
type Document struct {
	GeneralSettings Block            `json:"GeneralSettings"`
	System          map[string]Block `json:"System"`
	Component       map[string]Block `json:"Component"`
}

// NewDocument returns an empty document
func NewDocument() *Document {
	return &Document{
		GeneralSettings: Block{},
		System:          map[string]Block{},
		Component:       map[string]Block{},
	}
}

// Snapshot returns a deep copy that later mutations of d do not affect
func (d *Document) Snapshot() *Document {
	out := &Document{
		GeneralSettings: d.GeneralSettings.clone(),
		System:          make(map[string]Block, len(d.System)),
		Component:       make(map[string]Block, len(d.Component)),
	}
	for name, b := range d.System {
		out.System[name] = b.clone()
	}
	for name, b := range d.Component {
		out.Component[name] = b.clone()
	}
	return out
}

// Framework returns the framework system block, creating it when missing
func (d *Document) Framework() Block {
	b, ok := d.System[FrameworkSystem]
	if !ok {
		b = Block{}
		d.System[FrameworkSystem] = b
	}
	return b
}

// SetTemperature sets the external temperature of the framework system
func (d *Document) SetTemperature(kelvin float64) {
	d.Framework()[KeyExternalTemperature] = kelvin
}

// SetCreateNumberOfMolecules sets how many molecules of a component the stage inserts
func (d *Document) SetCreateNumberOfMolecules(molecule string, n int) error {
	c, ok := d.Component[molecule]
	if !ok {
		return fmt.Errorf("document has no component %q", molecule)
	}
	c[KeyCreateNumberOfMolecules] = n
	return nil
}

// EnableRestart marks the document as continuing from a restart file
func (d *Document) EnableRestart() {
	d.GeneralSettings[KeyRestartFile] = "yes"
}

// Map returns the document as nested plain maps, suitable for structpb and JSON
func (d *Document) Map() map[string]any {
	plain := func(b Block) map[string]any {
		out := make(map[string]any, len(b))
		for k, v := range b {
			out[k] = v
		}
		return out
	}
	group := func(g map[string]Block) map[string]any {
		out := make(map[string]any, len(g))
		for name, b := range g {
			out[name] = plain(b)
		}
		return out
	}
	return map[string]any{
		SectionGeneralSettings: plain(d.GeneralSettings),
		SectionSystem:          group(d.System),
		SectionComponent:       group(d.Component),
	}
}

// FormatValue renders one setting value the way the simulator input expects
func FormatValue(v any) string {
	switch x := v.(type) {
	case bool:
		if x {
			return "yes"
		}
		return "no"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Render writes the document in simulation.input format. Keys are sorted so the
// output is deterministic; systems and components are numbered in name order.
func (d *Document) Render() string {
	var sb strings.Builder
	for _, k := range sortedKeys(d.GeneralSettings) {
		fmt.Fprintf(&sb, "%-40s %s\n", k, FormatValue(d.GeneralSettings[k]))
	}

	frameworks, boxes := 0, 0
	for _, name := range sortedKeys(d.System) {
		b := d.System[name]
		sb.WriteByte('\n')
		if t, _ := b[KeyType].(string); t == "Box" {
			fmt.Fprintf(&sb, "Box %d\n", boxes)
			boxes++
		} else {
			fmt.Fprintf(&sb, "Framework %d\n", frameworks)
			fmt.Fprintf(&sb, "%-40s %s\n", "FrameworkName", name)
			frameworks++
		}
		for _, k := range sortedKeys(b) {
			if k == KeyType {
				continue
			}
			fmt.Fprintf(&sb, "%-40s %s\n", k, FormatValue(b[k]))
		}
	}

	for i, name := range sortedKeys(d.Component) {
		b := d.Component[name]
		fmt.Fprintf(&sb, "\nComponent %d MoleculeName %s\n", i, name)
		for _, k := range sortedKeys(b) {
			fmt.Fprintf(&sb, "            %-28s %s\n", k, FormatValue(b[k]))
		}
	}
	return sb.String()
}
