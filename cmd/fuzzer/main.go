/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the Akaylee EVM fuzzer. Builds the cobra
command tree, binds logging flags to viper and exits non-zero on any fatal
configuration or campaign error.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/akaylee-evm/cmd/fuzzer/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the command tree. Running the root without a subcommand fuzzes.
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "akaylee-evm",
		Short: "Akaylee EVM - smart contract fuzzing campaign launcher",
		Long: `Akaylee EVM resolves compiled contracts from a glob, optionally forks live chain
state, and runs a comparison-guided or dataflow-guided fuzzing campaign against them,
reporting Solidity panics and invalid opcodes as bugs.`,
		Version:       "1.0.0",
		Args:          cobra.NoArgs,
		RunE:          commands.RunFuzz,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add persistent flags
	rootCmd.PersistentFlags().String("config", "", "Configuration file path (yaml, toml or json)")
	rootCmd.PersistentFlags().String("log-level", "info", "Logging level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "custom", "Log format (text, json, custom)")
	rootCmd.PersistentFlags().String("log-dir", "", "Log output directory, empty for console only")

	// Bind flags to viper
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("log_dir", rootCmd.PersistentFlags().Lookup("log-dir"))

	// The root fuzzes too
	commands.AddFuzzFlags(rootCmd)

	fuzzCmd := &cobra.Command{
		Use:   "fuzz",
		Short: "Run a fuzzing campaign",
		Long: `Resolve the contracts matched by --contract-glob, deploy them into an in-memory
EVM and fuzz them with the selected strategy until the iteration or time budget runs out,
the campaign is interrupted, or a bug is found with --stop-on-bug.`,
		Example: `  akaylee-evm fuzz -c './build/*' -f df --max-iterations 100000
  akaylee-evm fuzz -c './build/*' -t Vault -o true --onchain-chain-id 1 --onchain-url https://eth.llamarpc.com`,
		Args: cobra.NoArgs,
		RunE: commands.RunFuzz,
	}
	commands.AddFuzzFlags(fuzzCmd)
	rootCmd.AddCommand(fuzzCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list-fuzzers",
		Short: "List available fuzzing strategies",
		Args:  cobra.NoArgs,
		RunE:  commands.ListFuzzers,
	})

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Perform built-in self-checks before fuzzing",
		Long: `Resolve the contract glob, check that the log directory is writable and, when
--onchain true is set, connect to the fork endpoint and verify its chain id. Useful in CI.`,
		Args: cobra.NoArgs,
		RunE: commands.PerformSelfCheck,
	}
	commands.AddTargetFlags(checkCmd)
	rootCmd.AddCommand(checkCmd)

	return rootCmd
}
