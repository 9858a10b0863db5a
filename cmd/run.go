package cmd

import (
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deployseq/internal/chain"
	"github.com/stevehiehn/deployseq/internal/engine"
	"github.com/stevehiehn/deployseq/internal/plan"
)

var (
	runInputs    []string
	runSkipBuild bool
)

var runCmd = &cobra.Command{
	Use:   "run <plan.yaml>",
	Short: "Deploy every step of a plan, in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		p, inputs, err := loadPlan(args[0], runInputs)
		if err != nil {
			return err
		}
		if err := plan.Validate(p, nil); err != nil {
			return err
		}
		if err := cfg.RequireChain(); err != nil {
			return err
		}

		ctx := cmd.Context()
		workDir, err := filepath.Abs(cfg.WorkDir)
		if err != nil {
			return err
		}
		if err := runBuild(ctx, p, workDir, runSkipBuild, logger); err != nil {
			return err
		}
		store, err := openArtifacts(cfg, p)
		if err != nil {
			return err
		}

		var expected *big.Int
		if cfg.ChainID > 0 {
			expected = big.NewInt(cfg.ChainID)
		}
		ec, chainID, err := chain.Dial(ctx, chain.DialConfig{
			URL:             cfg.RPCURL,
			Attempts:        cfg.DialAttempts,
			Delay:           time.Second,
			ExpectedChainID: expected,
		}, logger)
		if err != nil {
			return err
		}
		defer ec.Close()

		opts, err := chain.NewTransactor(cfg.PrivateKey, chainID)
		if err != nil {
			return err
		}
		client := chain.NewEVMClient(ec, opts, store,
			chain.WithLogger(logger),
			chain.WithConfirmTimeout(cfg.ConfirmTimeout),
		)
		fillDeployer(p, inputs, client.From())

		out := cmd.OutOrStdout()
		notifier := out
		if jsonOutput {
			notifier = cmd.ErrOrStderr()
		}

		rc := engine.NewRunContext(workDir, inputs)
		result, err := engine.Execute(ctx, p, rc, engine.ModeRun, engine.Options{
			Client:   client,
			Notifier: notifier,
			Logger:   logger,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			if err := printJSON(out, result); err != nil {
				return err
			}
			return failure(p, result)
		}

		if result.Success {
			fmt.Fprintf(out, "Plan %q deployed %d contracts.\n", p.Name, len(result.Steps))
		} else {
			fmt.Fprintf(out, "Plan %q failed at step %q.\n", p.Name, result.FailedStep)
			printErrors(out, result)
		}
		fmt.Fprintf(out, "Run ID: %s\n", result.RunID)
		return failure(p, result)
	},
}

func init() {
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "Input values (key=value)")
	runCmd.Flags().BoolVar(&runSkipBuild, "skip-build", false, "Do not run the plan's build command")
	rootCmd.AddCommand(runCmd)
}
