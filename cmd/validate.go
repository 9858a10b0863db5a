package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deployseq/internal/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate <plan.yaml>",
	Short: "Validate a plan file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		p, err := plan.LoadFile(args[0])
		if err != nil {
			return err
		}
		if err := plan.Validate(p, nil); err != nil {
			if jsonOutput {
				_ = printJSON(out, map[string]any{"valid": false, "error": err.Error()})
			}
			return fmt.Errorf("validation failed: %w", err)
		}

		order, _ := plan.Order(p.Steps)
		if jsonOutput {
			names := make([]string, 0, len(order))
			for _, s := range order {
				names = append(names, s.Name)
			}
			return printJSON(out, map[string]any{"valid": true, "order": names})
		}
		fmt.Fprintln(out, "Plan is valid.")
		for i, s := range order {
			fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, s.Name, s.ContractID())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
