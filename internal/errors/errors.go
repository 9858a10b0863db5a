package errors

import "fmt"

// Error type constants
const (
	ValidationError      = "VALIDATION_ERROR"
	UnresolvedDependency = "UNRESOLVED_DEPENDENCY"
	DuplicateStep        = "DUPLICATE_STEP"
	DeploymentRejected   = "DEPLOYMENT_REJECTED"
	ArtifactNotFound     = "ARTIFACT_NOT_FOUND"
	BuildFailed          = "BUILD_FAILED"
)

// Sentinels for errors.Is. A *RunError matches the sentinel of its Type.
var (
	ErrValidation           = &RunError{Type: ValidationError}
	ErrUnresolvedDependency = &RunError{Type: UnresolvedDependency}
	ErrDuplicateStep        = &RunError{Type: DuplicateStep}
	ErrDeploymentRejected   = &RunError{Type: DeploymentRejected}
	ErrArtifactNotFound     = &RunError{Type: ArtifactNotFound}
	ErrBuildFailed          = &RunError{Type: BuildFailed}
)

// RunError is a structured error identifying the failing step and cause.
type RunError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	StepID  string `json:"step_id,omitempty"`
	Phase   string `json:"phase,omitempty"` // submit, confirm
	Hint    string `json:"hint,omitempty"`
	Err     error  `json:"-"`
}

func (e *RunError) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	if e.StepID != "" {
		return fmt.Sprintf("[%s] step %s: %s", e.Type, e.StepID, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

func (e *RunError) Unwrap() error { return e.Err }

// Is reports whether target is a RunError of the same type.
func (e *RunError) Is(target error) bool {
	t, ok := target.(*RunError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func NewValidationError(msg, hint string) *RunError {
	return &RunError{Type: ValidationError, Message: msg, Hint: hint}
}

func NewUnresolvedDependency(stepID, ref string) *RunError {
	return &RunError{
		Type:    UnresolvedDependency,
		StepID:  stepID,
		Message: fmt.Sprintf("references step %q which has no recorded result", ref),
		Hint:    "Declare the referenced step before this one",
	}
}

func NewDuplicateStep(stepID string) *RunError {
	return &RunError{
		Type:    DuplicateStep,
		StepID:  stepID,
		Message: fmt.Sprintf("step name %q is already recorded", stepID),
		Hint:    "Step names must be unique within a plan",
	}
}

func NewDeploymentRejected(stepID, phase string, err error) *RunError {
	return &RunError{
		Type:    DeploymentRejected,
		StepID:  stepID,
		Phase:   phase,
		Message: fmt.Sprintf("%s failed", phase),
		Err:     err,
	}
}
