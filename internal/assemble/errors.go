package assemble

import (
	"errors"
	"fmt"
)

// ErrAssembly is matched by every AssemblyError via errors.Is
var ErrAssembly = errors.New("result assembly failed")

// AssemblyError reports a completed stage whose output lacks something the final
// report or geometry needs.
type AssemblyError struct {
	Label  string
	Field  string
	Reason string
}

func (e *AssemblyError) Error() string {
	msg := fmt.Sprintf("%s: stage %s", ErrAssembly, e.Label)
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *AssemblyError) Is(target error) bool {
	return target == ErrAssembly
}
