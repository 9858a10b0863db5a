package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time.
var Version = "dev"

var (
	cfgFile    string
	jsonOutput bool

	// v holds configuration merged from deployseq.yaml, DEPLOYSEQ_* env and flags.
	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "deployseq",
	Short: "Deploy dependent contracts in order",
	Long: `deployseq deploys a plan of contracts whose constructors take each
other's addresses, one at a time, waiting for every confirmation.

Configuration (in order of priority):
  1. Command-line flags (--rpc-url, --artifacts, --log-level)
  2. Environment variables (DEPLOYSEQ_RPC_URL, DEPLOYSEQ_PRIVATE_KEY, ...)
  3. Config file (./deployseq.yaml or --config)`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "deployseq version %s\n", Version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is ./deployseq.yaml)")
	pf.BoolVar(&jsonOutput, "json", false, "Output raw JSON")
	pf.String("log-level", "", "debug, info, warn or error (or DEPLOYSEQ_LOG_LEVEL)")
	pf.String("rpc-url", "", "RPC endpoint (or DEPLOYSEQ_RPC_URL)")
	pf.String("artifacts", "", "compiled artifacts directory (or DEPLOYSEQ_ARTIFACTS_DIR)")
	pf.String("work-dir", "", "directory the build command and run records use (or DEPLOYSEQ_WORK_DIR)")

	_ = v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = v.BindPFlag("rpc_url", pf.Lookup("rpc-url"))
	_ = v.BindPFlag("artifacts_dir", pf.Lookup("artifacts"))
	_ = v.BindPFlag("work_dir", pf.Lookup("work-dir"))

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
