/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fuzz.go
Description: Fuzz command implementation for the Akaylee EVM fuzzer. Assembles the
campaign configuration from flags, validates it, dispatches it to the selected
strategy and prints a summary of the run.
*/

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kleascm/akaylee-evm/pkg/config"
	"github.com/kleascm/akaylee-evm/pkg/contracts"
	"github.com/kleascm/akaylee-evm/pkg/dispatch"
	"github.com/kleascm/akaylee-evm/pkg/fuzzers"
	"github.com/kleascm/akaylee-evm/pkg/onchain"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// Dialer opens the RPC connection for forked campaigns. Replaced in tests.
var Dialer onchain.DialFunc = onchain.DialEthClient

// RunFuzz executes one fuzzing campaign
func RunFuzz(cmd *cobra.Command, args []string) error {
	// Load configuration first
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logging
	log, err := SetupLogging(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer log.Close()
	logger := log.GetLogger()

	opts, err := ReadOptions(cmd)
	if err != nil {
		return err
	}
	if ignored := opts.OnChain.IgnoredOverrides(); len(ignored) > 0 {
		logger.WithField("flags", ignored).Warn("On-chain overrides ignored because --onchain is not true")
	}

	cfg, err := config.Assemble(opts, contracts.NewContractLoader(logger))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if dryRun, _ := cmd.Flags().GetBool(FlagDryRun); dryRun {
		printDryRun(cmd.OutOrStdout(), cfg)
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engines := fuzzers.NewEngines(logger, fuzzers.WithDialer(Dialer))
	if err := dispatch.NewDispatcher(engines, logger).Dispatch(ctx, cfg); err != nil {
		return err
	}

	if result := engines.LastResult(); result != nil {
		printSummary(cmd.OutOrStdout(), result)
	}
	return nil
}

// printDryRun shows the assembled campaign without running it
func printDryRun(out io.Writer, cfg *config.Config) {
	fmt.Fprintln(out, "Dry run: configuration is valid")

	onChain := "disabled"
	if forkConfig, enabled := cfg.OnChain(); enabled {
		onChain = forkConfig.String()
	}
	limits := cfg.Limits()

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Setting", "Value"})
	table.SetAutoWrapText(false)
	table.AppendBulk([][]string{
		{"Fuzzer", fmt.Sprintf("%s (%s)", cfg.FuzzerType(), cfg.FuzzerType().Description())},
		{"On-chain", onChain},
		{"Max iterations", fmt.Sprintf("%d", limits.MaxIterations)},
		{"Duration", limits.Duration.String()},
		{"Gas limit", fmt.Sprintf("%d", limits.GasLimit)},
		{"Seed", fmt.Sprintf("%d", limits.Seed)},
		{"Output", limits.OutputDir},
	})
	table.Render()

	targets := tablewriter.NewWriter(out)
	targets.SetHeader([]string{"Contract", "Artifacts", "Methods"})
	for _, target := range cfg.Targets() {
		methods := make([]string, 0)
		for _, method := range target.Callable() {
			methods = append(methods, method.Name)
		}
		targets.Append([]string{target.Name, target.SourcePrefix, strings.Join(methods, ", ")})
	}
	targets.Render()
}

// printSummary prints the final statistics and bugs of a campaign
func printSummary(out io.Writer, result *fuzzers.CampaignResult) {
	stats := result.Stats

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Metric", "Value"})
	table.AppendBulk([][]string{
		{"Campaign", result.ID},
		{"Fuzzer", result.FuzzerType},
		{"Targets", strings.Join(result.Targets, ", ")},
		{"Executions", fmt.Sprintf("%d", stats.Executions)},
		{"Exec/s", fmt.Sprintf("%.1f", stats.ExecutionsPerSecond)},
		{"Reverts", fmt.Sprintf("%d", stats.Reverts)},
		{"Coverage points", fmt.Sprintf("%d", stats.CoveragePoints)},
		{"Corpus", fmt.Sprintf("%d", stats.CorpusSize)},
		{"Unique bugs", fmt.Sprintf("%d", stats.UniqueBugs)},
		{"Duration", result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond).String()},
		{"Results", result.OutputFile},
	})
	if result.Fork != nil {
		table.Append([]string{"Fork", fmt.Sprintf("chain %d at block %d", result.Fork.ChainID, result.Fork.BlockNumber)})
	}
	table.Render()

	if len(result.Triage) == 0 {
		return
	}

	bugs := tablewriter.NewWriter(out)
	bugs.SetHeader([]string{"Severity", "Class", "Contract", "Method", "Description", "Input"})
	bugs.SetAutoWrapText(false)
	for _, triaged := range result.Triage {
		bug := triaged.Bug
		bugs.Append([]string{triaged.Severity.String(), string(triaged.Class), bug.Target, bug.Method, bug.Description, bug.Input})
	}
	bugs.Render()
}
