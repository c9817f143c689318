// Package task submits simulation stages to the simulator and waits for them.
// A stage is an opaque, possibly long-running unit: it consumes a parameter
// document, the framework, force-field files and optionally the restart files of a
// previous stage, and leaves an artifact holding its own restart files.
package task

import (
	"context"
	"errors"

	"github.com/GoSim-25-26J-441/annealing-core/internal/forcefield"
	"github.com/GoSim-25-26J-441/annealing-core/internal/stage"
	"github.com/GoSim-25-26J-441/annealing-core/internal/structure"
	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

// Artifact layout
const (
	RestartDir        = "Restart/System_0"
	RestartInitialDir = "RestartInitial/System_0"
	InputFile         = "simulation.input"
	BlockPocketFile   = stage.BlockPocketName + ".block"
)

var (
	// ErrTaskFailed is wrapped by every error reporting that the simulator itself failed
	ErrTaskFailed = errors.New("simulation task failed")
	// ErrTaskCancelled is returned by Wait after Cancel
	ErrTaskCancelled = errors.New("simulation task cancelled")
)

// Input is everything one stage submission carries
type Input struct {
	RunID       string
	Label       string
	CallLabel   string
	Kind        models.StageKind
	Document    *stage.Document
	Structure   *structure.Structure
	Parent      string
	ForceField  forcefield.FileSet
	BlockPocket []byte
}

// Result is a resolved stage
type Result struct {
	Label       string
	ArtifactRef string
	// OutputParameters is the simulator's parsed output, nil when the runner does not parse it
	OutputParameters map[string]any
}

// Handle is a submitted stage
type Handle interface {
	ID() string
	// Wait blocks until the stage resolves or ctx is done
	Wait(ctx context.Context) (*Result, error)
	// Cancel releases the stage; a later Wait returns ErrTaskCancelled
	Cancel(ctx context.Context) error
}

// Submitter launches stages
type Submitter interface {
	Submit(ctx context.Context, in Input) (Handle, error)
}

// SubmitterFunc adapts a function to Submitter
type SubmitterFunc func(ctx context.Context, in Input) (Handle, error)

func (f SubmitterFunc) Submit(ctx context.Context, in Input) (Handle, error) {
	return f(ctx, in)
}

// Resolved is a Handle that has already resolved
type Resolved struct {
	Result *Result
	Err    error
}

func (r *Resolved) ID() string {
	if r.Result == nil {
		return ""
	}
	return r.Result.ArtifactRef
}

func (r *Resolved) Wait(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Result, r.Err
}

func (r *Resolved) Cancel(context.Context) error { return nil }

// PrepareDocument returns the document the simulator receives: a copy of in.Document
// with restart enabled when the stage continues from a parent.
func PrepareDocument(in Input) *stage.Document {
	doc := in.Document.Snapshot()
	if in.Parent != "" {
		doc.EnableRestart()
	}
	return doc
}
