package stage

import (
	"fmt"

	"github.com/GoSim-25-26J-441/annealing-core/internal/params"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

// Simulation types
const (
	SimulationMonteCarlo   = "MonteCarlo"
	SimulationMinimization = "Minimization"
)

// BlockPocketName is the base name of the block-pocket file staged next to the input
const BlockPocketName = "block_file"

const (
	printPropertiesEvery int64 = 10_000_000_000
	ewaldPrecision             = 1e-6
	minimizationSteps          = 10000
	gradientTolerance          = 1e-6
)

// Stage labels
func NVTLabel(n int) string     { return fmt.Sprintf("RaspaNVT_%d", n) }
func NVTCallLabel(n int) string { return fmt.Sprintf("run_raspa_nvt_%d", n) }

const (
	MinimizationLabel     = "RaspaMin"
	MinimizationCallLabel = "run_raspa_min"
)

// NewNVTDocument builds the base NVT document for molecule m loaded in framework s.
// The framework is replicated until it is at least twice the cutoff wide along
// every axis; a degenerate cell yields a *structure.GeometryError.
func NewNVTDocument(p params.RunParameters, m models.MoleculeSpec, s *structure.Structure, blockPocket bool) (*Document, error) {
	mult, err := structure.ReplicationFactors(s.Cell, 2*p.FFCutoff)
	if err != nil {
		return nil, err
	}

	d := NewDocument()
	d.GeneralSettings = Block{
		KeySimulationType:                SimulationMonteCarlo,
		KeyNumberOfCycles:                p.MCSteps,
		KeyPrintPropertiesEvery:          printPropertiesEvery,
		KeyPrintEvery:                    p.MCSteps / 100,
		KeyRemoveAtomNumberCodeFromLabel: true,
		KeyForcefield:                    "Local",
		KeyUseChargesFromCIFFile:         "yes",
		KeyCutOff:                        p.FFCutoff,
	}
	d.System[FrameworkSystem] = Block{
		KeyType:      "Framework",
		KeyUnitCells: fmt.Sprintf("%d %d %d", mult[0], mult[1], mult[2]),
	}

	component := Block{
		KeyMoleculeDefinition:      "Local",
		KeyTranslationProbability:  1.0,
		KeyReinsertionProbability:  1.0,
		KeyCreateNumberOfMolecules: p.NumberOfMolecules,
	}
	if blockPocket {
		component[KeyBlockPocketsFileName] = BlockPocketName
	}
	if !m.SingleBead {
		component[KeyRotationProbability] = 1.0
	}
	d.Component[m.Name] = component

	// Ewald is the simulator default; it is written out anyway
	if m.Charged {
		d.GeneralSettings[KeyChargeMethod] = "Ewald"
		d.GeneralSettings[KeyEwaldPrecision] = ewaldPrecision
	} else {
		d.GeneralSettings[KeyChargeMethod] = "None"
	}
	return d, nil
}

// ApplyMinimization switches d, in place, to a single-cycle energy minimization.
func ApplyMinimization(d *Document) {
	g := d.GeneralSettings
	g[KeySimulationType] = SimulationMinimization
	g[KeyNumberOfInitializationCycles] = 0
	g[KeyNumberOfCycles] = 1
	g[KeyPrintEvery] = 1
	g[KeyMaximumNumberOfMinimizationSteps] = minimizationSteps
	g[KeyRMSGradientTolerance] = gradientTolerance
	g[KeyMaxGradientTolerance] = gradientTolerance
}
