package plan

import (
	"fmt"
	"strings"

	"github.com/stevehiehn/deployseq/internal/template"
	"gopkg.in/yaml.v3"
)

// Plan is the top-level deployment description.
type Plan struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Build       string           `yaml:"build,omitempty"` // e.g. "forge build"
	Inputs      map[string]Input `yaml:"inputs,omitempty"`
	Steps       []Step           `yaml:"steps"`
}

// Input defines a plan-level input parameter.
type Input struct {
	Required    bool   `yaml:"required,omitempty"`
	Description string `yaml:"description,omitempty"`
	Default     string `yaml:"default,omitempty"`
}

// Step deploys one contract instance.
type Step struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	Contract    string   `yaml:"contract,omitempty"` // defaults to Name
	Args        []Arg    `yaml:"args,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
}

// ContractID returns the artifact identifier to deploy.
func (s Step) ContractID() string {
	if s.Contract != "" {
		return s.Contract
	}
	return s.Name
}

// Dependencies returns every step name this step needs an address from,
// in first-seen order.
func (s Step) Dependencies() []string {
	seen := map[string]bool{}
	var deps []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			deps = append(deps, name)
		}
	}
	for _, a := range s.Args {
		if a.Ref != "" {
			add(a.Ref)
			continue
		}
		for _, name := range template.StepRefs(a.Literal) {
			add(name)
		}
	}
	for _, name := range s.DependsOn {
		add(name)
	}
	return deps
}

// Arg is a constructor argument: a literal value or the address of a prior step.
type Arg struct {
	Literal string
	Ref     string
}

// Lit builds a literal argument.
func Lit(v string) Arg { return Arg{Literal: v} }

// Ref builds a reference to another step's address.
func Ref(step string) Arg { return Arg{Ref: step} }

// ParseArg turns a scalar into an Arg. A value that is exactly
// {{steps.X.address}} becomes a reference to X.
func ParseArg(s string) Arg {
	if name, ok := template.StepRef(s); ok {
		return Arg{Ref: name}
	}
	return Arg{Literal: s}
}

// IsRef reports whether the argument references another step.
func (a Arg) IsRef() bool { return a.Ref != "" }

func (a Arg) String() string {
	if a.Ref != "" {
		return fmt.Sprintf("<%s.address>", a.Ref)
	}
	return a.Literal
}

// UnmarshalYAML accepts a scalar, {ref: Name} or {value: literal}.
func (a *Arg) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*a = ParseArg(node.Value)
		return nil
	case yaml.MappingNode:
		var (
			out              Arg
			hasRef, hasValue bool
		)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i], node.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: arg %q must be a scalar", val.Line, key.Value)
			}
			switch key.Value {
			case "ref":
				hasRef = true
				out.Ref = strings.TrimSpace(val.Value)
			case "value":
				hasValue = true
				out.Literal = val.Value
			default:
				return fmt.Errorf("line %d: unknown arg field %q", key.Line, key.Value)
			}
		}
		switch {
		case hasRef && hasValue:
			return fmt.Errorf("line %d: arg has both ref and value", node.Line)
		case !hasRef && !hasValue:
			return fmt.Errorf("line %d: arg mapping needs a ref or value field", node.Line)
		case hasRef && out.Ref == "":
			return fmt.Errorf("line %d: arg ref is empty", node.Line)
		}
		*a = out
		return nil
	default:
		return fmt.Errorf("line %d: arg must be a scalar or mapping", node.Line)
	}
}

// MarshalYAML writes references back in their template form.
func (a Arg) MarshalYAML() (any, error) {
	if a.Ref != "" {
		return map[string]string{"ref": a.Ref}, nil
	}
	return a.Literal, nil
}
