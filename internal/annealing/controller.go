// Package annealing drives a simulated-annealing run: a descending series of NVT
// Monte Carlo stages, each continuing from the restart of the previous one, then a
// single energy minimization, folded into one structured result.
package annealing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/annealing-core/internal/artifact"
	"github.com/GoSim-25-26J-441/annealing-core/internal/assemble"
	"github.com/GoSim-25-26J-441/annealing-core/internal/catalog"
	"github.com/GoSim-25-26J-441/annealing-core/internal/forcefield"
	"github.com/GoSim-25-26J-441/annealing-core/internal/metrics"
	"github.com/GoSim-25-26J-441/annealing-core/internal/params"
	"github.com/GoSim-25-26J-441/annealing-core/internal/stage"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
	"github.com/GoSim-25-26J-441/annealing-core/internal/task"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/logger"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/utils"
)

const cancelTimeout = 30 * time.Second

// CompletionMessage is reported once the outputs are assembled
const CompletionMessage = "Simulated annealing completed"

// Inputs of one run. The molecule is given either inline or by catalog name, the
// parameters either as a mapping or as a YAML/JSON document; an empty parameter
// set means all defaults.
type Inputs struct {
	RunID             string
	Structure         *structure.Structure
	Molecule          *models.MoleculeSpec
	MoleculeName      string
	Parameters        map[string]any
	ParameterDocument []byte
	BlockPocket       []byte
}

// Outputs of a completed run. OutputParameters is nil when no stage produced
// output parameters.
type Outputs struct {
	LoadedMolecule   *structure.Structure `json:"loaded_molecule"`
	LoadedStructure  *structure.Structure `json:"loaded_structure"`
	OutputParameters *models.EnergyReport `json:"output_parameters,omitempty"`
}

// Config wires a controller to its collaborators. Submitter and Store are required.
type Config struct {
	Catalog     *catalog.Catalog
	ForceFields *forcefield.Builder
	Submitter   task.Submitter
	Store       artifact.Store
	Observer    Observer
	Metrics     *metrics.Metrics
}

// Controller runs one annealing procedure. It is single use.
type Controller struct {
	cfg    Config
	runID  string
	log    *slog.Logger
	inputs Inputs

	mu    sync.Mutex
	used  bool
	state State
}

// New creates a controller. A nil Catalog uses catalog.Default, a nil ForceFields
// builder is created over the catalog.
func New(cfg Config) (*Controller, error) {
	if cfg.Submitter == nil {
		return nil, errors.New("annealing: submitter is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("annealing: artifact store is required")
	}
	if cfg.Catalog == nil {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("annealing: failed to load default catalog: %w", err)
		}
		cfg.Catalog = cat
	}
	if cfg.ForceFields == nil {
		b, err := forcefield.NewBuilder(cfg.Catalog, forcefield.DefaultCacheSize)
		if err != nil {
			return nil, err
		}
		cfg.ForceFields = b
	}
	return &Controller{cfg: cfg, state: State{Phase: PhaseSetup}}, nil
}

// State returns a snapshot of the run's progress. Safe to call from any goroutine.
func (c *Controller) State() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.progress()
}

// Run executes the whole procedure and blocks until it reaches done or failed.
// Cancelling ctx cancels the pending stage; the run cannot be resumed afterwards.
func (c *Controller) Run(ctx context.Context, in Inputs) (*Outputs, error) {
	c.mu.Lock()
	if c.used {
		c.mu.Unlock()
		return nil, ErrControllerUsed
	}
	c.used = true
	c.mu.Unlock()

	c.inputs = in
	c.runID = in.RunID
	if c.runID == "" {
		c.runID = utils.GenerateRunID()
	}
	c.log = logger.ForRun(c.runID)

	c.cfg.Metrics.RunStarted()
	start := time.Now()

	out, err := c.loop(ctx)

	status := models.RunStatusCompleted
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = models.RunStatusCancelled
	default:
		status = models.RunStatusFailed
	}
	c.cfg.Metrics.RunFinished(status)
	if err != nil {
		c.log.Error("annealing run failed", "status", status, "error", err)
		return nil, err
	}
	c.log.Info("annealing run completed", "duration", utils.FormatDuration(time.Since(start)))
	return out, nil
}

func (c *Controller) loop(ctx context.Context) (*Outputs, error) {
	var out *Outputs
	for !c.state.Phase.IsTerminal() {
		var err error
		switch c.state.Phase {
		case PhaseSetup:
			err = c.setup()
			if err == nil {
				c.setPhase(PhaseScheduling)
			}
		case PhaseScheduling:
			var again bool
			again, err = c.shouldRunNVT()
			if err == nil && again {
				c.setPhase(PhaseRunningNVT)
			} else if err == nil {
				c.setPhase(PhaseRunningMinimization)
			}
		case PhaseRunningNVT:
			err = c.runNVT(ctx)
			if err == nil {
				c.setPhase(PhaseScheduling)
			}
		case PhaseRunningMinimization:
			err = c.runMinimization(ctx)
			if err == nil {
				c.setPhase(PhaseAssembling)
			}
		case PhaseAssembling:
			out, err = c.assemble(ctx)
			if err == nil {
				c.report(CompletionMessage)
				c.setPhase(PhaseDone)
			}
		default:
			err = fmt.Errorf("annealing: unknown phase %q", c.state.Phase)
		}
		if err != nil {
			c.setPhase(PhaseFailed)
			return nil, err
		}
	}
	return out, nil
}

func (c *Controller) setup() error {
	in := c.inputs
	if in.Structure == nil {
		return fmt.Errorf("%w: structure is required", ErrInvalidInputs)
	}

	p, err := c.parameters()
	if err != nil {
		return err
	}

	var mol models.MoleculeSpec
	switch {
	case in.Molecule != nil && in.MoleculeName != "":
		return fmt.Errorf("%w: molecule given both inline and by name", ErrInvalidInputs)
	case in.Molecule != nil:
		mol = *in.Molecule
	default:
		mol, err = c.cfg.Catalog.Molecule(in.MoleculeName)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInputs, err)
		}
	}
	if err := mol.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputs, err)
	}

	doc, err := stage.NewNVTDocument(p, mol, in.Structure, len(in.BlockPocket) > 0)
	if err != nil {
		return err
	}
	ff, err := c.cfg.ForceFields.Build(mol, p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInputs, err)
	}

	c.update(func(s *State) {
		s.Parameters = p
		s.Molecule = mol
		s.Document = doc
		s.ForceField = ff
	})
	c.log.Info("annealing run prepared",
		"molecule", mol.Name,
		"stages", len(p.TemperatureList)+1,
		"unit_cells", doc.Framework()[stage.KeyUnitCells])
	return nil
}

func (c *Controller) parameters() (params.RunParameters, error) {
	in := c.inputs
	switch {
	case in.Parameters != nil && len(in.ParameterDocument) > 0:
		return params.RunParameters{}, fmt.Errorf("%w: parameters given both as a mapping and as a document", ErrInvalidInputs)
	case len(in.ParameterDocument) > 0:
		return params.Parse(in.ParameterDocument)
	default:
		return params.Validate(in.Parameters)
	}
}

// shouldRunNVT is the scheduling guard. After the first stage has run, later stages
// continue with the molecules already loaded, so no new ones are created.
func (c *Controller) shouldRunNVT() (bool, error) {
	s := &c.state
	if s.Count == 1 {
		if err := s.Document.SetCreateNumberOfMolecules(s.Molecule.Name, 0); err != nil {
			return false, err
		}
	}
	return s.Count < len(s.Parameters.TemperatureList), nil
}

func (c *Controller) runNVT(ctx context.Context) error {
	s := &c.state
	n := s.Count + 1
	temp := s.Parameters.TemperatureList[s.Count]
	s.Document.SetTemperature(temp)

	var parent string
	if s.Count > 0 {
		parent = s.Stages[s.Count-1].ArtifactRef()
	}

	rec, err := c.submit(ctx, n, task.Input{
		Label:     stage.NVTLabel(n),
		CallLabel: stage.NVTCallLabel(n),
		Kind:      models.StageKindNVT,
		Parent:    parent,
	}, temp)
	if err != nil {
		return err
	}
	c.update(func(s *State) {
		s.Stages = append(s.Stages, rec)
		s.Count++
	})
	c.report(fmt.Sprintf("Running Raspa NVT (%d of %d)", n, len(s.Parameters.TemperatureList)))
	return c.wait(ctx, rec)
}

func (c *Controller) runMinimization(ctx context.Context) error {
	s := &c.state
	stage.ApplyMinimization(s.Document)

	var parent string
	if len(s.Stages) > 0 {
		parent = s.Stages[len(s.Stages)-1].ArtifactRef()
	}

	rec, err := c.submit(ctx, len(s.Stages)+1, task.Input{
		Label:     stage.MinimizationLabel,
		CallLabel: stage.MinimizationCallLabel,
		Kind:      models.StageKindMinimization,
		Parent:    parent,
	}, 0)
	if err != nil {
		return err
	}
	c.update(func(s *State) { s.Minimization = rec })
	c.report("Running Raspa final minimization")
	return c.wait(ctx, rec)
}

// submit fills in the shared parts of in and hands a snapshot of the live document
// to the submitter.
func (c *Controller) submit(ctx context.Context, index int, in task.Input, temp float64) (*StageRecord, error) {
	s := &c.state
	in.RunID = c.runID
	in.Document = s.Document.Snapshot()
	in.Structure = c.inputs.Structure
	in.ForceField = s.ForceField
	in.BlockPocket = c.inputs.BlockPocket

	h, err := c.cfg.Submitter.Submit(ctx, in)
	if err != nil {
		return nil, &StageError{Index: index, Label: in.Label, Kind: in.Kind, Err: err}
	}
	rec := &StageRecord{
		Index:       index,
		Label:       in.Label,
		CallLabel:   in.CallLabel,
		Kind:        in.Kind,
		Temperature: temp,
		Parent:      in.Parent,
		TaskID:      h.ID(),
		SubmittedAt: time.Now(),
		handle:      h,
	}
	c.cfg.Metrics.StageSubmitted(in.Kind)
	c.log.Info("stage submitted", "stage", index, "label", in.Label, "task_id", rec.TaskID, "parent", in.Parent)
	c.emit(Event{Kind: EventStageSubmitted, Stage: rec})
	return rec, nil
}

// wait suspends on the stage until it resolves. If ctx ends first the stage is
// cancelled and ctx's error is returned.
func (c *Controller) wait(ctx context.Context, rec *StageRecord) error {
	res, err := rec.handle.Wait(ctx)
	if ctxErr := ctx.Err(); ctxErr != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
		defer cancel()
		if cerr := rec.handle.Cancel(cctx); cerr != nil {
			c.log.Warn("failed to cancel stage", "label", rec.Label, "task_id", rec.TaskID, "error", cerr)
		}
		return fmt.Errorf("annealing run %s stopped during %s: %w", c.runID, rec.Label, ctxErr)
	}
	if err == nil && (res == nil || res.ArtifactRef == "") {
		err = errors.New("stage resolved without an artifact")
	}
	if err != nil {
		return &StageError{Index: rec.Index, Label: rec.Label, Kind: rec.Kind, Err: err}
	}

	resolved := time.Now()
	c.update(func(*State) {
		rec.Result = res
		rec.ResolvedAt = resolved
	})
	c.cfg.Metrics.StageResolved(rec.Kind, resolved.Sub(rec.SubmittedAt))
	c.log.Info("stage completed", "stage", rec.Index, "label", rec.Label, "artifact", res.ArtifactRef,
		"duration", utils.FormatDuration(resolved.Sub(rec.SubmittedAt)))
	c.emit(Event{Kind: EventStageResolved, Stage: rec})
	return nil
}

func (c *Controller) assemble(ctx context.Context) (*Outputs, error) {
	s := &c.state
	last := s.Minimization
	restart, err := assemble.ReadRestart(ctx, c.cfg.Store, last.Label, last.ArtifactRef())
	if err != nil {
		return nil, err
	}
	symbols, err := c.cfg.Catalog.Symbols(s.Molecule)
	if err != nil {
		return nil, &assemble.AssemblyError{Label: last.Label, Field: "symbols", Reason: err.Error()}
	}
	host := c.inputs.Structure
	mol, err := assemble.ExtractMolecule(last.Label, restart, symbols, s.Parameters.NumberOfMolecules, host.Cell, s.Molecule.Name)
	if err != nil {
		return nil, err
	}

	out := &Outputs{
		LoadedMolecule:  mol,
		LoadedStructure: structure.Merge(host, mol),
	}

	nvt := make([]assemble.StageOutput, 0, len(s.Stages))
	for _, r := range s.Stages {
		nvt = append(nvt, stageOutput(r))
	}
	minimization := stageOutput(last)
	if !assemble.AnyOutput(append(nvt, minimization)...) {
		c.log.Warn("no stage produced output parameters, energy report omitted")
		return out, nil
	}
	out.OutputParameters, err = assemble.AggregateEnergies(s.Parameters.NumberOfMolecules, nvt, minimization)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stageOutput(r *StageRecord) assemble.StageOutput {
	o := assemble.StageOutput{Label: r.Label, Temperature: r.Temperature}
	if r.Result != nil {
		o.OutputParameters = r.Result.OutputParameters
	}
	return o
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	fn(&c.state)
	c.mu.Unlock()
}

func (c *Controller) setPhase(p Phase) {
	c.update(func(s *State) { s.Phase = p })
	c.log.Debug("phase changed", "phase", p)
	c.emit(Event{Kind: EventPhase})
}

func (c *Controller) report(msg string) {
	c.log.Info(msg)
	c.emit(Event{Kind: EventReport, Message: msg})
}

func (c *Controller) emit(e Event) {
	if c.cfg.Observer == nil {
		return
	}
	e.RunID = c.runID
	e.At = time.Now()
	e.Phase = c.state.Phase
	if e.Stage != nil {
		cp := e.Stage.copy()
		e.Stage = &cp
	}
	c.cfg.Observer(e)
}
