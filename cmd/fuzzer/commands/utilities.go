/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utilities.go
Description: Utility commands for the Akaylee EVM fuzzer. Provides list-fuzzers and
the self-check that resolves contracts and probes the fork endpoint before a campaign.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kleascm/akaylee-evm/pkg/config"
	"github.com/kleascm/akaylee-evm/pkg/contracts"
	"github.com/kleascm/akaylee-evm/pkg/onchain"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ListFuzzers lists the fuzzing strategies
func ListFuzzers(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🧬 Akaylee EVM - Available Fuzzers")
	fmt.Fprintln(out)

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"ID", "Status", "Description"})
	table.SetAutoWrapText(false)
	for _, fuzzerType := range config.FuzzerTypes() {
		status := "available"
		if !fuzzerType.Implemented() {
			status = "not implemented"
		}
		table.Append([]string{fuzzerType.String(), status, fuzzerType.Description()})
	}
	table.Render()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "✨ Use --%s to select a fuzzer (default %s)\n", FlagFuzzerType, config.ComparisonGuided)
	return nil
}

// selfCheck is one named prerequisite
type selfCheck struct {
	name     string
	function func() (string, error)
}

// PerformSelfCheck validates contract artifacts, directories and the fork endpoint
func PerformSelfCheck(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "🔍 Akaylee EVM - System Self-Check")
	fmt.Fprintln(out, "==================================")
	fmt.Fprintln(out)

	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetLevel(logrus.WarnLevel)

	opts, err := ReadOptions(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []selfCheck{
		{"Contract Artifacts", func() (string, error) { return checkContracts(opts, logger) }},
		{"Log Directory", checkLogDirectory},
		{"On-Chain Endpoint", func() (string, error) { return checkEndpoint(ctx, opts.OnChain) }},
	}

	passed := 0
	for _, check := range checks {
		fmt.Fprintf(out, "🔍 %s... ", check.name)
		detail, err := check.function()
		if err != nil {
			fmt.Fprintf(out, "❌ FAILED: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "✅ PASSED (%s)\n", detail)
		passed++
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "📊 Results: %d/%d checks passed\n", passed, len(checks))

	if passed != len(checks) {
		return fmt.Errorf("%d/%d checks failed", len(checks)-passed, len(checks))
	}
	fmt.Fprintln(out, "✨ All checks passed! Ready for fuzzing.")
	return nil
}

// checkContracts resolves the glob the same way a campaign would
func checkContracts(opts config.Options, logger *logrus.Logger) (string, error) {
	cfg, err := config.Assemble(opts, contracts.NewContractLoader(logger))
	if err != nil {
		return "", err
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	methods := 0
	for _, target := range cfg.Targets() {
		methods += len(target.Callable())
	}
	return fmt.Sprintf("%d contracts, %d callable methods", len(cfg.Targets()), methods), nil
}

// checkLogDirectory verifies that the log directory, if any, is writable
func checkLogDirectory() (string, error) {
	dir := viper.GetString("log_dir")
	if dir == "" {
		return "console only", nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create %s: %w", dir, err)
	}

	probe := filepath.Join(dir, ".akaylee-write-test")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return "", fmt.Errorf("%s is not writable: %w", dir, err)
	}
	os.Remove(probe)
	return dir, nil
}

// checkEndpoint connects to the fork endpoint when forking is enabled
func checkEndpoint(ctx context.Context, opts onchain.Options) (string, error) {
	if ignored := opts.IgnoredOverrides(); len(ignored) > 0 {
		return fmt.Sprintf("forking disabled, ignoring %v", ignored), nil
	}

	forkConfig := onchain.Resolve(opts)
	if forkConfig == nil {
		return "forking disabled", nil
	}

	fork, err := onchain.Connect(ctx, *forkConfig, Dialer)
	if err != nil {
		return "", err
	}
	defer fork.Close()

	return fmt.Sprintf("chain %d at block %d", fork.ChainID(), fork.BlockNumber()), nil
}
