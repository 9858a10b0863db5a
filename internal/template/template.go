package template

import (
	"fmt"
	"regexp"
)

var stepRefRe = regexp.MustCompile(`\{\{\s*steps\.([^.}\s]+)\.address\s*\}\}`)
var inputRefRe = regexp.MustCompile(`\{\{\s*inputs\.([^}\s]+)\s*\}\}`)
var exactStepRefRe = regexp.MustCompile(`^\{\{\s*steps\.([^.}\s]+)\.address\s*\}\}$`)

// Context holds available values for template resolution.
type Context struct {
	Inputs    map[string]string
	Addresses map[string]string // step name → hex address
}

// UnresolvedStepError is returned when a template names a step with no address yet.
type UnresolvedStepError struct {
	Step string
}

func (e *UnresolvedStepError) Error() string {
	return fmt.Sprintf("unresolved step reference %q", e.Step)
}

// UnresolvedInputError is returned when a template names an input that was not provided.
type UnresolvedInputError struct {
	Input string
}

func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("unresolved input %q", e.Input)
}

// Resolve replaces all {{steps.X.address}} and {{inputs.Y}} in s.
func Resolve(s string, ctx *Context) (string, error) {
	var resolveErr error

	result := stepRefRe.ReplaceAllStringFunc(s, func(match string) string {
		name := stepRefRe.FindStringSubmatch(match)[1]
		addr, ok := ctx.Addresses[name]
		if !ok {
			if resolveErr == nil {
				resolveErr = &UnresolvedStepError{Step: name}
			}
			return match
		}
		return addr
	})
	if resolveErr != nil {
		return "", resolveErr
	}

	result = inputRefRe.ReplaceAllStringFunc(result, func(match string) string {
		name := inputRefRe.FindStringSubmatch(match)[1]
		val, ok := ctx.Inputs[name]
		if !ok {
			if resolveErr == nil {
				resolveErr = &UnresolvedInputError{Input: name}
			}
			return match
		}
		return val
	})
	if resolveErr != nil {
		return "", resolveErr
	}

	return result, nil
}

// StepRef reports whether s is exactly one {{steps.X.address}} reference.
func StepRef(s string) (string, bool) {
	m := exactStepRefRe.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StepRefs returns the step names referenced anywhere in s.
func StepRefs(s string) []string {
	var names []string
	for _, m := range stepRefRe.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}

// InputRefs returns the input names referenced anywhere in s.
func InputRefs(s string) []string {
	var names []string
	for _, m := range inputRefRe.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}
