// Package assemble turns the resolved stages of an annealing run into its outputs:
// the final adsorbate geometry, the framework with the adsorbate loaded, and the
// energy series of every stage.
package assemble

import (
	"bufio"
	"bytes"
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/GoSim-25-26J-441/annealing-core/internal/artifact"
	"github.com/GoSim-25-26J-441/annealing-core/internal/catalog"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
	"github.com/GoSim-25-26J-441/annealing-core/internal/task"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// AdsorbatePositionTag marks the restart lines holding adsorbate coordinates
const AdsorbatePositionTag = "Adsorbate-atom-position:"

// ReadRestart returns the first restart file, in name order, of a stage artifact
func ReadRestart(ctx context.Context, store artifact.Store, label, ref string) ([]byte, error) {
	names, err := artifact.ListDir(ctx, store, ref, task.RestartDir)
	if err != nil {
		return nil, &AssemblyError{Label: label, Field: task.RestartDir, Reason: err.Error()}
	}
	if len(names) == 0 {
		return nil, &AssemblyError{Label: label, Field: task.RestartDir, Reason: "artifact has no restart file"}
	}
	data, err := store.Get(ctx, ref, path.Join(task.RestartDir, names[0]))
	if err != nil {
		return nil, &AssemblyError{Label: label, Field: task.RestartDir, Reason: err.Error()}
	}
	return data, nil
}

// AdsorbatePositions parses the coordinates of every adsorbate position line, in order
func AdsorbatePositions(label string, restart []byte) ([]utils.Vec3, error) {
	var out []utils.Vec3
	sc := bufio.NewScanner(bytes.NewReader(restart))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := sc.Text()
		if !strings.Contains(line, AdsorbatePositionTag) {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, &AssemblyError{Label: label, Field: AdsorbatePositionTag, Reason: "line " + strconv.Itoa(n) + " has fewer than three coordinates"}
		}
		var p utils.Vec3
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(fields[3+k], 64)
			if err != nil {
				return nil, &AssemblyError{Label: label, Field: AdsorbatePositionTag, Reason: "line " + strconv.Itoa(n) + ": " + err.Error()}
			}
			p[k] = v
		}
		out = append(out, p)
	}
	if err := sc.Err(); err != nil {
		return nil, &AssemblyError{Label: label, Field: AdsorbatePositionTag, Reason: err.Error()}
	}
	return out, nil
}

// ExtractMolecule pairs the adsorbate positions of a restart listing with the
// declared site symbols, repeated once per loaded molecule, drops dummy sites and
// wraps what is left into cell.
//
// The positions come from the replicated simulation box. With more than one loaded
// molecule and a replicated cell, wrapping into the original cell can overlap
// molecules; this is the accepted behaviour.
func ExtractMolecule(label string, restart []byte, symbols []string, numberOfMolecules int, cell structure.Cell, name string) (*structure.Structure, error) {
	positions, err := AdsorbatePositions(label, restart)
	if err != nil {
		return nil, err
	}
	if len(positions) == 0 {
		return nil, &AssemblyError{Label: label, Field: AdsorbatePositionTag, Reason: "restart file has no adsorbate positions"}
	}

	expected := make([]string, 0, len(symbols)*numberOfMolecules)
	for i := 0; i < numberOfMolecules; i++ {
		expected = append(expected, symbols...)
	}
	n := min(len(expected), len(positions))
	if len(expected) != len(positions) {
		logger.Warn("adsorbate position count does not match the declared sites",
			"label", label, "positions", len(positions), "sites", len(expected), "paired", n)
	}

	mol := &structure.Structure{Name: name, Cell: cell}
	for i := 0; i < n; i++ {
		if expected[i] == catalog.DummySymbol {
			continue
		}
		mol.Atoms = append(mol.Atoms, structure.Atom{
			Label:    expected[i],
			Symbol:   expected[i],
			Position: positions[i],
		})
	}
	if len(mol.Atoms) == 0 {
		return nil, &AssemblyError{Label: label, Field: AdsorbatePositionTag, Reason: "only dummy sites were found"}
	}
	if err := mol.Wrap(); err != nil {
		return nil, err
	}
	return mol, nil
}
