package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/stevehiehn/deployseq/internal/artifact"
	"github.com/stevehiehn/deployseq/internal/chain"
	dagerrors "github.com/stevehiehn/deployseq/internal/errors"
	"github.com/stevehiehn/deployseq/internal/plan"
	"github.com/stevehiehn/deployseq/internal/template"
)

// Mode controls execution behavior.
type Mode int

const (
	ModeExplain Mode = iota
	ModeDryRun
	ModeRun
)

func (m Mode) String() string {
	switch m {
	case ModeExplain:
		return "explain"
	case ModeDryRun:
		return "dry-run"
	case ModeRun:
		return "run"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Options carries the collaborators Execute needs outside explain mode.
type Options struct {
	Client   chain.Client
	Notifier io.Writer
	Logger   *slog.Logger
}

// Execute validates and orders a plan, then explains or deploys it. A failed
// deployment is reported through the returned Result, not the error; the
// error is reserved for problems that stop the run before the first step.
func Execute(ctx context.Context, p *plan.Plan, rc *RunContext, mode Mode, opts Options) (*Result, error) {
	if err := plan.Validate(p, rc.Inputs); err != nil {
		return nil, err
	}
	steps, err := plan.Order(p.Steps)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:   rc.RunID,
		Mode:    mode.String(),
		Success: true,
	}

	if mode == ModeExplain {
		result.Steps = explainSteps(steps, rc.Inputs)
		return result, nil
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("%s mode requires a chain client", mode)
	}

	var store *artifact.Store
	if mode == ModeRun {
		store, err = artifact.New(rc.RunID, rc.WorkDir)
		if err != nil {
			return nil, err
		}
		result.Artifacts = []string{store.BaseDir}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With(slog.String("run_id", rc.RunID), slog.String("mode", mode.String()))

	seq := &Sequencer{
		Client:   opts.Client,
		Notifier: opts.Notifier,
		Logger:   logger,
		Inputs:   rc.Inputs,
		RunID:    rc.RunID,
	}
	run, runErr := seq.Run(ctx, steps)

	result.Steps = stepResults(steps, run, runErr)
	result.Addresses = run.Registry.Addresses()
	if runErr != nil {
		result.Success = false
		re := reportable(runErr)
		result.FailedStep = re.StepID
		result.Errors = append(result.Errors, re)
		logger.Error("run failed", slog.String("step", re.StepID), slog.String("error", runErr.Error()))
	}

	if store != nil {
		for _, res := range run.Registry.All() {
			if err := store.WriteStep(res.Name, res); err != nil {
				logger.Warn("writing step record", slog.String("step", res.Name), slog.String("error", err.Error()))
			}
		}
		if err := store.WriteResult(result); err != nil {
			logger.Warn("writing run record", slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// reportable flattens err into a RunError whose Message carries the cause,
// since the wrapped error does not survive JSON encoding.
func reportable(err error) dagerrors.RunError {
	var re *dagerrors.RunError
	if !errors.As(err, &re) {
		return dagerrors.RunError{Type: dagerrors.DeploymentRejected, Message: err.Error()}
	}
	out := *re
	if out.Err != nil {
		if out.Message == "" {
			out.Message = out.Err.Error()
		} else {
			out.Message = out.Message + ": " + out.Err.Error()
		}
	}
	return out
}

func stepResults(steps []plan.Step, run *Run, runErr error) []StepResult {
	failed := ""
	var re *dagerrors.RunError
	if errors.As(runErr, &re) {
		failed = re.StepID
	}

	out := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		sr := StepResult{
			Name:        step.Name,
			Contract:    step.ContractID(),
			DependsOn:   step.Dependencies(),
			Description: step.Description,
		}
		if res, ok := run.Registry.Get(step.Name); ok {
			sr.Status = StatusConfirmed
			if !res.Confirmed {
				sr.Status = StatusPredicted
			}
			sr.Address = res.Address.Hex()
			sr.TxHash = res.TxHash
			sr.BlockNumber = res.BlockNumber
			sr.Args = res.Args
		} else if runErr != nil && step.Name == failed {
			sr.Status = StatusFailed
			failed = "" // a later duplicate of the same name is skipped
		} else {
			sr.Status = StatusSkipped
		}
		out = append(out, sr)
	}
	return out
}

// explainSteps renders steps with references shown as <Name.address>.
func explainSteps(steps []plan.Step, inputs map[string]string) []StepResult {
	placeholders := make(map[string]string, len(steps))
	for _, s := range steps {
		placeholders[s.Name] = fmt.Sprintf("<%s.address>", s.Name)
	}
	tctx := &template.Context{Inputs: inputs, Addresses: placeholders}

	out := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		sr := StepResult{
			Name:        step.Name,
			Contract:    step.ContractID(),
			Status:      StatusExplain,
			DependsOn:   step.Dependencies(),
			Description: step.Description,
		}
		for _, a := range step.Args {
			if a.IsRef() {
				sr.Args = append(sr.Args, a.String())
				continue
			}
			v, err := template.Resolve(a.Literal, tctx)
			if err != nil {
				v = a.Literal
			}
			sr.Args = append(sr.Args, v)
		}
		out = append(out, sr)
	}
	return out
}
