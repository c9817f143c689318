package annealing

import (
	"time"

	"github.com/GoSim-25-26J-441/annealing-core/internal/forcefield"
	"github.com/GoSim-25-26J-441/annealing-core/internal/params"
	"github.com/GoSim-25-26J-441/annealing-core/internal/stage"
	"github.com/GoSim-25-26J-441/annealing-core/internal/task"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

// Phase is a state of the controller
type Phase string

const (
	PhaseSetup               Phase = "setup"
	PhaseScheduling          Phase = "scheduling"
	PhaseRunningNVT          Phase = "running_nvt"
	PhaseRunningMinimization Phase = "running_minimization"
	PhaseAssembling          Phase = "assembling"
	PhaseDone                Phase = "done"
	PhaseFailed              Phase = "failed"
)

// IsTerminal reports whether no transition leaves p
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// StageRecord is one submitted stage. Result is set once the stage resolved.
type StageRecord struct {
	Index       int              `json:"index"`
	Label       string           `json:"label"`
	CallLabel   string           `json:"call_label"`
	Kind        models.StageKind `json:"kind"`
	Temperature float64          `json:"temperature,omitempty"`
	Parent      string           `json:"parent,omitempty"`
	TaskID      string           `json:"task_id,omitempty"`
	SubmittedAt time.Time        `json:"submitted_at"`
	ResolvedAt  time.Time        `json:"resolved_at,omitzero"`
	Result      *task.Result     `json:"result,omitempty"`

	handle task.Handle
}

// ArtifactRef returns the stage's artifact, or "" while it is pending
func (r *StageRecord) ArtifactRef() string {
	if r == nil || r.Result == nil {
		return ""
	}
	return r.Result.ArtifactRef
}

// State is everything the controller carries between phases. It is owned by the
// goroutine running the controller.
type State struct {
	Phase        Phase
	Count        int
	Stages       []*StageRecord
	Minimization *StageRecord
	Parameters   params.RunParameters
	Molecule     models.MoleculeSpec
	Document     *stage.Document
	ForceField   forcefield.FileSet
}

// Progress is a read-only summary of a State
type Progress struct {
	Phase     Phase         `json:"phase"`
	Count     int           `json:"count"`
	Scheduled int           `json:"scheduled"`
	Stages    []StageRecord `json:"stages"`
}

func (s *State) progress() Progress {
	p := Progress{Phase: s.Phase, Count: s.Count, Scheduled: len(s.Parameters.TemperatureList)}
	for _, r := range s.Stages {
		p.Stages = append(p.Stages, r.copy())
	}
	if s.Minimization != nil {
		p.Stages = append(p.Stages, s.Minimization.copy())
	}
	return p
}

func (r *StageRecord) copy() StageRecord {
	out := *r
	out.handle = nil
	if r.Result != nil {
		res := *r.Result
		out.Result = &res
	}
	return out
}
