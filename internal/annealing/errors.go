package annealing

import (
	"errors"
	"fmt"

	"github.com/GoSim-25-26J-441/annealing-core/pkg/models"
)

var (
	// ErrStageFailed is matched by every StageError via errors.Is
	ErrStageFailed = errors.New("simulation stage failed")
	// ErrControllerUsed is returned by a second call to Run
	ErrControllerUsed = errors.New("controller has already run")
	// ErrInvalidInputs is returned, wrapped, when the inputs cannot start a run
	ErrInvalidInputs = errors.New("invalid annealing inputs")
)

// StageError reports a stage that could not be submitted or did not complete.
// Index counts submitted stages from 1.
type StageError struct {
	Index int
	Label string
	Kind  models.StageKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s (stage %d, %s): %v", ErrStageFailed, e.Label, e.Index, e.Kind, e.Err)
}

func (e *StageError) Is(target error) bool {
	return target == ErrStageFailed
}

func (e *StageError) Unwrap() error {
	return e.Err
}
