package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stevehiehn/deployseq/internal/config"
	"github.com/stevehiehn/deployseq/internal/contracts"
	"github.com/stevehiehn/deployseq/internal/engine"
	dagerrors "github.com/stevehiehn/deployseq/internal/errors"
	"github.com/stevehiehn/deployseq/internal/logging"
	"github.com/stevehiehn/deployseq/internal/plan"
	"github.com/stevehiehn/deployseq/internal/runner"
)

// deployerInput is filled with the signing address when a plan declares it
// without a default and none is passed.
const deployerInput = "deployer"

// parseInputs converts ["key=value", ...] to a map.
func parseInputs(raw []string) map[string]string {
	m := map[string]string{}
	for _, kv := range raw {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) == 2 {
			m[parts[0]] = parts[1]
		}
	}
	return m
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.New(level), nil
}

func loadPlan(path string, raw []string) (*plan.Plan, map[string]string, error) {
	p, err := plan.LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return p, p.ApplyDefaults(parseInputs(raw)), nil
}

func fillDeployer(p *plan.Plan, inputs map[string]string, from common.Address) {
	if _, declared := p.Inputs[deployerInput]; !declared {
		return
	}
	if _, ok := inputs[deployerInput]; !ok && from != (common.Address{}) {
		inputs[deployerInput] = from.Hex()
	}
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// runBuild executes the plan's build command unless skipped.
func runBuild(ctx context.Context, p *plan.Plan, workDir string, skip bool, logger *slog.Logger) error {
	if skip || p.Build == "" {
		return nil
	}
	logger.Info("running build", slog.String("command", p.Build), slog.String("dir", workDir))
	r, err := runner.Build(ctx, p.Build, workDir)
	if err != nil {
		return err
	}
	logger.Debug("build finished", slog.String("stdout", strings.TrimSpace(r.Stdout)))
	return nil
}

// openArtifacts checks that every step's contract has a loadable artifact
// before anything is sent.
func openArtifacts(cfg *config.Config, p *plan.Plan) (*contracts.Store, error) {
	store := contracts.NewStore(resolvePath(cfg.WorkDir, cfg.ArtifactsDir))
	for _, s := range p.Steps {
		if _, err := store.Get(s.ContractID()); err != nil {
			if errors.Is(err, contracts.ErrNotFound) {
				return nil, &dagerrors.RunError{
					Type:    dagerrors.ArtifactNotFound,
					StepID:  s.Name,
					Message: fmt.Sprintf("no artifact for contract %q under %s", s.ContractID(), store.Root()),
					Hint:    "Run the plan's build command or point --artifacts at the compiler output",
				}
			}
			return nil, &dagerrors.RunError{Type: dagerrors.ValidationError, StepID: s.Name, Message: "loading artifact", Err: err}
		}
	}
	return store, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSteps(w io.Writer, result *engine.Result) {
	for _, sr := range result.Steps {
		fmt.Fprintf(w, "Step: %s [%s]\n", sr.Name, sr.Status)
		if sr.Description != "" {
			fmt.Fprintf(w, "  Description: %s\n", sr.Description)
		}
		fmt.Fprintf(w, "  Contract: %s\n", sr.Contract)
		if len(sr.Args) > 0 {
			fmt.Fprintf(w, "  Args: %s\n", strings.Join(sr.Args, ", "))
		}
		if len(sr.DependsOn) > 0 {
			fmt.Fprintf(w, "  Depends on: %s\n", strings.Join(sr.DependsOn, ", "))
		}
		if sr.Address != "" {
			fmt.Fprintf(w, "  Address: %s\n", sr.Address)
		}
		if sr.TxHash != "" {
			fmt.Fprintf(w, "  Tx: %s (block %d)\n", sr.TxHash, sr.BlockNumber)
		}
		fmt.Fprintln(w)
	}
}

func printErrors(w io.Writer, result *engine.Result) {
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  Error: %s\n", e.Message)
		if e.Hint != "" {
			fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
		}
	}
}

// failure turns an unsuccessful result into the command's error so the
// process exits non-zero.
func failure(p *plan.Plan, result *engine.Result) error {
	if result.Success {
		return nil
	}
	if len(result.Errors) > 0 {
		e := result.Errors[0]
		return fmt.Errorf("plan %q failed at step %q: %s", p.Name, result.FailedStep, e.Message)
	}
	return fmt.Errorf("plan %q failed at step %q", p.Name, result.FailedStep)
}
