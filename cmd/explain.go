package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deployseq/internal/engine"
)

var explainInputs []string

var explainCmd = &cobra.Command{
	Use:   "explain <plan.yaml>",
	Short: "Show the execution order and arguments without touching a chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, inputs, err := loadPlan(args[0], explainInputs)
		if err != nil {
			return err
		}
		// unknown inputs are shown by name
		for name := range p.Inputs {
			if _, ok := inputs[name]; !ok {
				inputs[name] = fmt.Sprintf("<%s>", name)
			}
		}

		rc := engine.NewRunContext(".", inputs)
		result, err := engine.Execute(cmd.Context(), p, rc, engine.ModeExplain, engine.Options{})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return printJSON(out, result)
		}

		fmt.Fprintf(out, "Plan: %s\n", p.Name)
		if p.Description != "" {
			fmt.Fprintf(out, "  %s\n", p.Description)
		}
		if p.Build != "" {
			fmt.Fprintf(out, "  Build: %s\n", p.Build)
		}
		fmt.Fprintln(out)
		printSteps(out, result)
		return nil
	},
}

func init() {
	explainCmd.Flags().StringArrayVar(&explainInputs, "input", nil, "Input values (key=value)")
	rootCmd.AddCommand(explainCmd)
}
