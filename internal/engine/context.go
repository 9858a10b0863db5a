package engine

import (
	"github.com/google/uuid"
)

// RunContext holds state for a plan execution.
type RunContext struct {
	RunID   string
	WorkDir string
	Inputs  map[string]string
}

// NewRunContext creates a new execution context.
func NewRunContext(workDir string, inputs map[string]string) *RunContext {
	if inputs == nil {
		inputs = map[string]string{}
	}
	return &RunContext{
		RunID:   uuid.New().String(),
		WorkDir: workDir,
		Inputs:  inputs,
	}
}
