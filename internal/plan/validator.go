package plan

import (
	"fmt"
	"regexp"

	dagerrors "github.com/stevehiehn/deployseq/internal/errors"
	"github.com/stevehiehn/deployseq/internal/template"
)

var stepNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks a plan for structural correctness. providedInputs may be
// nil to skip the required-input check.
func Validate(p *Plan, providedInputs map[string]string) error {
	if providedInputs != nil {
		for name, inp := range p.Inputs {
			if !inp.Required {
				continue
			}
			if _, ok := providedInputs[name]; !ok && inp.Default == "" {
				return &dagerrors.RunError{
					Type:    dagerrors.ValidationError,
					Message: fmt.Sprintf("missing required input %q", name),
					Hint:    fmt.Sprintf("Provide --input %s=<value>", name),
				}
			}
		}
	}

	seen := map[string]bool{}
	for i, s := range p.Steps {
		if s.Name == "" {
			return &dagerrors.RunError{
				Type:    dagerrors.ValidationError,
				Message: fmt.Sprintf("step at index %d has no name", i),
			}
		}
		if !stepNameRe.MatchString(s.Name) {
			return &dagerrors.RunError{
				Type:    dagerrors.ValidationError,
				StepID:  s.Name,
				Message: fmt.Sprintf("step name %q may only contain letters, digits, '_' and '-'", s.Name),
				Hint:    "Names are used in {{steps.<name>.address}} and run record file names",
			}
		}
		if seen[s.Name] {
			return dagerrors.NewDuplicateStep(s.Name)
		}
		seen[s.Name] = true
	}

	for _, s := range p.Steps {
		for _, dep := range s.Dependencies() {
			if dep == s.Name {
				return &dagerrors.RunError{
					Type:    dagerrors.ValidationError,
					StepID:  s.Name,
					Message: "step references its own address",
				}
			}
			if !seen[dep] {
				return &dagerrors.RunError{
					Type:    dagerrors.UnresolvedDependency,
					StepID:  s.Name,
					Message: fmt.Sprintf("references unknown step %q", dep),
				}
			}
		}
		for _, a := range s.Args {
			for _, name := range template.InputRefs(a.Literal) {
				if _, ok := p.Inputs[name]; !ok {
					return &dagerrors.RunError{
						Type:    dagerrors.ValidationError,
						StepID:  s.Name,
						Message: fmt.Sprintf("references unknown input %q", name),
						Hint:    "Declare it under inputs:",
					}
				}
			}
		}
	}

	if _, err := Order(p.Steps); err != nil {
		return err
	}
	return nil
}
