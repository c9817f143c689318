package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/annealing-core/internal/annealing"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

// Output file names written by the run command
const (
	loadedMoleculeFile  = "loaded_molecule.cif"
	loadedStructureFile = "loaded_structure.cif"
	reportFileBase      = "output_parameters"
)

type runOptions struct {
	structurePath   string
	moleculeName    string
	moleculePath    string
	parametersPath  string
	blockPocketPath string
	outDir          string
	reportFormat    string
	runID           string
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one annealing in the foreground and write its outputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := reportFileName(opts.reportFormat); err != nil {
				return err
			}
			comps, err := buildComponents(root.cfg)
			if err != nil {
				return err
			}
			defer comps.Close()
			return runOnce(cmd.Context(), comps.controllerConfig(nil), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.structurePath, "structure", "s", "", "framework CIF file (required)")
	f.StringVarP(&opts.moleculeName, "molecule", "m", "", "catalog molecule name")
	f.StringVar(&opts.moleculePath, "molecule-file", "", "YAML molecule description, instead of --molecule")
	f.StringVarP(&opts.parametersPath, "params", "p", "", "YAML or JSON run parameters (defaults when omitted)")
	f.StringVar(&opts.blockPocketPath, "block-pocket", "", "block pocket file")
	f.StringVarP(&opts.outDir, "out", "o", ".", "output directory")
	f.StringVar(&opts.reportFormat, "report-format", "yaml", "energy report format (yaml, json)")
	f.StringVar(&opts.runID, "run-id", "", "run ID (generated when omitted)")
	_ = cmd.MarkFlagRequired("structure")
	return cmd
}

func runOnce(ctx context.Context, cfg annealing.Config, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := reportFileName(opts.reportFormat); err != nil {
		return err
	}
	in, err := opts.inputs()
	if err != nil {
		return err
	}

	log := logger.ForRun(in.RunID)
	cfg.Observer = func(e annealing.Event) {
		if e.Kind == annealing.EventReport {
			log.Info(e.Message)
		}
	}
	ctrl, err := annealing.New(cfg)
	if err != nil {
		return err
	}
	out, err := ctrl.Run(ctx, in)
	if err != nil {
		return err
	}
	written, err := writeOutputs(opts.outDir, opts.reportFormat, out)
	if err != nil {
		return err
	}
	log.Info("outputs written", "dir", opts.outDir, "files", written)
	return nil
}

func (o *runOptions) inputs() (annealing.Inputs, error) {
	in := annealing.Inputs{RunID: o.runID, MoleculeName: o.moleculeName}
	if in.RunID == "" {
		in.RunID = utils.GenerateRunID()
	}

	cif, err := os.ReadFile(o.structurePath)
	if err != nil {
		return in, fmt.Errorf("failed to read structure: %w", err)
	}
	if in.Structure, err = structure.ReadCIFBytes(cif); err != nil {
		return in, err
	}

	if o.moleculePath != "" {
		data, err := os.ReadFile(o.moleculePath)
		if err != nil {
			return in, fmt.Errorf("failed to read molecule: %w", err)
		}
		var spec models.MoleculeSpec
		if err := yaml.Unmarshal(data, &spec); err != nil {
			return in, fmt.Errorf("failed to parse molecule: %w", err)
		}
		in.Molecule = &spec
	}
	if o.parametersPath != "" {
		if in.ParameterDocument, err = os.ReadFile(o.parametersPath); err != nil {
			return in, fmt.Errorf("failed to read parameters: %w", err)
		}
	}
	if o.blockPocketPath != "" {
		if in.BlockPocket, err = os.ReadFile(o.blockPocketPath); err != nil {
			return in, fmt.Errorf("failed to read block pocket: %w", err)
		}
	}
	return in, nil
}

// writeOutputs writes both structures as CIF and, when present, the energy report.
// It returns the names of the files written.
func writeOutputs(dir, format string, out *annealing.Outputs) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	files := map[string]*structure.Structure{
		loadedMoleculeFile:  out.LoadedMolecule,
		loadedStructureFile: out.LoadedStructure,
	}
	var written []string
	for _, name := range []string{loadedMoleculeFile, loadedStructureFile} {
		data, err := structure.CIFBytes(files[name])
		if err != nil {
			return written, fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			return written, err
		}
		written = append(written, name)
	}

	if out.OutputParameters == nil {
		return written, nil
	}
	name, err := reportFileName(format)
	if err != nil {
		return written, err
	}
	var data []byte
	if format == "json" {
		data, err = json.MarshalIndent(out.OutputParameters, "", "  ")
	} else {
		data, err = yaml.Marshal(out.OutputParameters)
	}
	if err != nil {
		return written, err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return written, err
	}
	return append(written, name), nil
}

// reportFileName maps a report format to its file name; an empty format means yaml
func reportFileName(format string) (string, error) {
	switch format {
	case "json":
		return reportFileBase + ".json", nil
	case "yaml", "":
		return reportFileBase + ".yaml", nil
	default:
		return "", fmt.Errorf("unknown report format %q (must be yaml or json)", format)
	}
}
