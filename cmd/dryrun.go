package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/stevehiehn/deployseq/internal/chain"
	"github.com/stevehiehn/deployseq/internal/config"
	"github.com/stevehiehn/deployseq/internal/contracts"
	"github.com/stevehiehn/deployseq/internal/engine"
	"github.com/stevehiehn/deployseq/internal/plan"
)

var (
	dryRunInputs    []string
	dryRunSkipBuild bool
	dryRunFrom      string
)

var dryRunCmd = &cobra.Command{
	Use:   "dry-run <plan.yaml>",
	Short: "Encode every deployment and predict addresses without sending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		p, inputs, err := loadPlan(args[0], dryRunInputs)
		if err != nil {
			return err
		}
		if err := plan.Validate(p, nil); err != nil {
			return err
		}

		ctx := cmd.Context()
		workDir, err := filepath.Abs(cfg.WorkDir)
		if err != nil {
			return err
		}
		if err := runBuild(ctx, p, workDir, dryRunSkipBuild, logger); err != nil {
			return err
		}
		store, err := openArtifacts(cfg, p)
		if err != nil {
			return err
		}

		from, err := deployerAddress(cfg, dryRunFrom)
		if err != nil {
			return err
		}
		client, err := newDryRunClient(ctx, cfg, from, store, logger)
		if err != nil {
			return err
		}
		fillDeployer(p, inputs, from)

		rc := engine.NewRunContext(workDir, inputs)
		result, err := engine.Execute(ctx, p, rc, engine.ModeDryRun, engine.Options{
			Client: client,
			Logger: logger,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := printJSON(out, result); err != nil {
				return err
			}
			return failure(p, result)
		}

		fmt.Fprintf(out, "Dry-run: %s (deployer %s)\n\n", p.Name, from.Hex())
		printSteps(out, result)
		if !result.Success {
			printErrors(out, result)
		}
		return failure(p, result)
	},
}

// deployerAddress prefers --from, then the configured key.
func deployerAddress(cfg *config.Config, flag string) (common.Address, error) {
	if flag != "" {
		if !common.IsHexAddress(flag) {
			return common.Address{}, fmt.Errorf("--from %q is not a hex address", flag)
		}
		return common.HexToAddress(flag), nil
	}
	if cfg.PrivateKey == "" {
		return common.Address{}, fmt.Errorf("dry-run needs a deployer: pass --from or set DEPLOYSEQ_PRIVATE_KEY")
	}
	key, err := chain.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// newDryRunClient reads the pending nonce when an RPC endpoint is configured
// and starts from zero otherwise.
func newDryRunClient(ctx context.Context, cfg *config.Config, from common.Address, store *contracts.Store, logger *slog.Logger) (*chain.DryRunClient, error) {
	if cfg.RPCURL == "" {
		logger.Warn("no rpc_url configured, predicting addresses from nonce 0")
		return chain.NewDryRunClientAt(from, 0, store), nil
	}
	ec, _, err := chain.Dial(ctx, chain.DialConfig{
		URL:      cfg.RPCURL,
		Attempts: cfg.DialAttempts,
		Delay:    time.Second,
	}, logger)
	if err != nil {
		return nil, err
	}
	defer ec.Close()
	return chain.NewDryRunClient(ctx, ec, from, store)
}

func init() {
	dryRunCmd.Flags().StringArrayVar(&dryRunInputs, "input", nil, "Input values (key=value)")
	dryRunCmd.Flags().BoolVar(&dryRunSkipBuild, "skip-build", false, "Do not run the plan's build command")
	dryRunCmd.Flags().StringVar(&dryRunFrom, "from", "", "Deployer address to predict from (defaults to the configured key)")
	rootCmd.AddCommand(dryRunCmd)
}
