package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/stevehiehn/deployseq/internal/chain"
	dagerrors "github.com/stevehiehn/deployseq/internal/errors"
	"github.com/stevehiehn/deployseq/internal/plan"
	"github.com/stevehiehn/deployseq/internal/template"
)

var (
	errNoHandle  = errors.New("client returned no pending handle")
	errNoReceipt = errors.New("client returned no receipt")
)

// Run is one pass over an ordered list of steps and the results it produced.
type Run struct {
	ID       string      `json:"run_id"`
	Steps    []plan.Step `json:"-"`
	Registry *Registry   `json:"results"`
}

// Sequencer deploys steps one at a time, waiting for each confirmation
// before the next submission.
type Sequencer struct {
	Client   chain.Client
	Notifier io.Writer // receives "<name> deployed to: <address>" lines; may be nil
	Logger   *slog.Logger
	Inputs   map[string]string
	RunID    string
}

// Run deploys steps strictly in the given order. The first failure aborts
// the run; the partially filled run is returned alongside a *RunError
// naming the failing step.
func (s *Sequencer) Run(ctx context.Context, steps []plan.Step) (*Run, error) {
	run := &Run{ID: s.RunID, Steps: steps, Registry: NewRegistry()}
	logger := s.logger()

	for _, step := range steps {
		if run.Registry.Has(step.Name) {
			return run, dagerrors.NewDuplicateStep(step.Name)
		}

		args, shown, err := s.resolveArgs(step, run.Registry)
		if err != nil {
			return run, err
		}

		logger.Info("deploying step",
			slog.String("step", step.Name),
			slog.String("contract", step.ContractID()),
			slog.Any("args", shown),
		)
		start := time.Now()

		pending, err := s.Client.Deploy(ctx, step.ContractID(), args)
		if err == nil && pending == nil {
			err = errNoHandle
		}
		if err != nil {
			return run, dagerrors.NewDeploymentRejected(step.Name, "submit", err)
		}
		receipt, err := s.Client.AwaitConfirmation(ctx, pending)
		if err == nil && receipt == nil {
			err = errNoReceipt
		}
		if err != nil {
			return run, dagerrors.NewDeploymentRejected(step.Name, "confirm", err)
		}

		res := DeploymentResult{
			Name:        step.Name,
			Contract:    step.ContractID(),
			Address:     receipt.Address,
			Confirmed:   !pending.DryRun,
			BlockNumber: receipt.BlockNumber,
			Args:        shown,
		}
		if !pending.DryRun {
			res.TxHash = receipt.TxHash.Hex()
		}
		if err := run.Registry.Insert(res); err != nil {
			return run, err
		}

		logger.Info("step recorded",
			slog.String("step", step.Name),
			slog.String("address", res.Address.Hex()),
			slog.Bool("confirmed", res.Confirmed),
			slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
		)
		if s.Notifier != nil {
			fmt.Fprintf(s.Notifier, "%s deployed to: %s\n", step.Name, res.Address.Hex())
		}
	}
	return run, nil
}

// resolveArgs returns the values to submit and their printable form.
func (s *Sequencer) resolveArgs(step plan.Step, reg *Registry) ([]any, []string, error) {
	for _, dep := range step.DependsOn {
		if !reg.Has(dep) {
			return nil, nil, dagerrors.NewUnresolvedDependency(step.Name, dep)
		}
	}

	args := make([]any, 0, len(step.Args))
	shown := make([]string, 0, len(step.Args))
	var tctx *template.Context

	for _, a := range step.Args {
		if a.IsRef() {
			res, ok := reg.Get(a.Ref)
			if !ok {
				return nil, nil, dagerrors.NewUnresolvedDependency(step.Name, a.Ref)
			}
			args = append(args, res.Address)
			shown = append(shown, res.Address.Hex())
			continue
		}

		if tctx == nil {
			tctx = &template.Context{Inputs: s.Inputs, Addresses: reg.Addresses()}
		}
		v, err := template.Resolve(a.Literal, tctx)
		if err != nil {
			var stepErr *template.UnresolvedStepError
			if errors.As(err, &stepErr) {
				return nil, nil, dagerrors.NewUnresolvedDependency(step.Name, stepErr.Step)
			}
			return nil, nil, &dagerrors.RunError{
				Type:    dagerrors.ValidationError,
				StepID:  step.Name,
				Message: "resolving argument",
				Err:     err,
			}
		}
		args = append(args, v)
		shown = append(shown, v)
	}
	return args, shown, nil
}

func (s *Sequencer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}
