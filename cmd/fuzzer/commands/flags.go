/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: flags.go
Description: Campaign flags shared by the fuzz and check commands, and their
conversion into assembly options. Optional flags become pointers only when the
operator supplied them on the command line, in the config file or in the environment.
*/

package commands

import (
	"strconv"
	"strings"

	"github.com/kleascm/akaylee-evm/pkg/config"
	"github.com/kleascm/akaylee-evm/pkg/onchain"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag names
const (
	FlagContractGlob       = "contract-glob"
	FlagTargetContract     = "target-contract"
	FlagFuzzerType         = "fuzzer-type"
	FlagOnChain            = "onchain"
	FlagOnChainURL         = "onchain-url"
	FlagOnChainChainID     = "onchain-chain-id"
	FlagOnChainBlockNumber = "onchain-block-number"
	FlagMaxIterations      = "max-iterations"
	FlagDuration           = "duration"
	FlagGasLimit           = "gas-limit"
	FlagSeed               = "seed"
	FlagOutput             = "output"
	FlagStopOnBug          = "stop-on-bug"
	FlagDryRun             = "dry-run"
)

// viperKey maps a flag name to its config file and environment key
func viperKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

// AddTargetFlags registers the flags that select contracts and the forked chain
func AddTargetFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP(FlagContractGlob, "c", "", "Glob matching compiled contract artifacts (.abi/.bin pairs)")
	flags.StringP(FlagTargetContract, "t", "", "Fuzz only the contract with this name")
	flags.StringP(FlagOnChain, "o", "", "Fork live chain state: true or false")
	flags.String(FlagOnChainURL, "", "RPC endpoint to fork (default "+onchain.DefaultEndpoint+")")
	flags.Uint32(FlagOnChainChainID, 0, "Chain id of the forked chain (default 56)")
	flags.Uint64(FlagOnChainBlockNumber, 0, "Block to fork from (default latest)")
}

// AddFuzzFlags registers every campaign flag
func AddFuzzFlags(cmd *cobra.Command) {
	AddTargetFlags(cmd)

	flags := cmd.Flags()
	flags.StringP(FlagFuzzerType, "f", "", "Fuzzing strategy: cmp, df or basic (default cmp)")
	flags.Uint64(FlagMaxIterations, 0, "Maximum executions, 0 for unbounded")
	flags.Duration(FlagDuration, 0, "Maximum campaign duration, 0 for unbounded")
	flags.Uint64(FlagGasLimit, config.DefaultGasLimit, "Gas limit per call")
	flags.Int64(FlagSeed, 0, "Seed for the mutation random source")
	flags.String(FlagOutput, config.DefaultOutputDir, "Directory for campaign results")
	flags.Bool(FlagStopOnBug, false, "Stop at the first bug")
	flags.Bool(FlagDryRun, false, "Validate configuration and exit without fuzzing")
}

// supplied reports whether flag was given on the command line or through viper
func supplied(cmd *cobra.Command, flag string) bool {
	return cmd.Flags().Changed(flag) || viper.IsSet(viperKey(flag))
}

func optionalString(cmd *cobra.Command, flag string) *string {
	if cmd.Flags().Changed(flag) {
		value, _ := cmd.Flags().GetString(flag)
		return &value
	}
	if viper.IsSet(viperKey(flag)) {
		value := viper.GetString(viperKey(flag))
		return &value
	}
	return nil
}

func optionalBool(cmd *cobra.Command, flag string) *bool {
	if cmd.Flags().Changed(flag) {
		value, _ := cmd.Flags().GetBool(flag)
		return &value
	}
	if viper.IsSet(viperKey(flag)) {
		value := viper.GetBool(viperKey(flag))
		return &value
	}
	return nil
}

// optionalSwitch parses a flag that takes an explicit true or false value
func optionalSwitch(cmd *cobra.Command, flag string) (*bool, error) {
	raw := optionalString(cmd, flag)
	if raw == nil {
		return nil, nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(*raw))
	if err != nil {
		return nil, &config.ConfigError{Field: flag, Value: *raw, Err: err}
	}
	return &value, nil
}

func optionalUint32(cmd *cobra.Command, flag string) *uint32 {
	if cmd.Flags().Changed(flag) {
		value, _ := cmd.Flags().GetUint32(flag)
		return &value
	}
	if viper.IsSet(viperKey(flag)) {
		value := viper.GetUint32(viperKey(flag))
		return &value
	}
	return nil
}

func optionalUint64(cmd *cobra.Command, flag string) *uint64 {
	if cmd.Flags().Changed(flag) {
		value, _ := cmd.Flags().GetUint64(flag)
		return &value
	}
	if viper.IsSet(viperKey(flag)) {
		value := viper.GetUint64(viperKey(flag))
		return &value
	}
	return nil
}

// stringFlag returns the supplied value or the flag default
func stringFlag(cmd *cobra.Command, flag string) string {
	if value := optionalString(cmd, flag); value != nil {
		return *value
	}
	value, _ := cmd.Flags().GetString(flag)
	return value
}

// ReadOptions converts the command's flags into assembly options
func ReadOptions(cmd *cobra.Command) (config.Options, error) {
	enabled, err := optionalSwitch(cmd, FlagOnChain)
	if err != nil {
		return config.Options{}, err
	}

	opts := config.Options{
		ContractGlob:   stringFlag(cmd, FlagContractGlob),
		TargetContract: optionalString(cmd, FlagTargetContract),
		OnChain: onchain.Options{
			Enabled:     enabled,
			Endpoint:    optionalString(cmd, FlagOnChainURL),
			ChainID:     optionalUint32(cmd, FlagOnChainChainID),
			BlockNumber: optionalUint64(cmd, FlagOnChainBlockNumber),
		},
	}

	// check has no campaign flags
	if cmd.Flags().Lookup(FlagFuzzerType) == nil {
		return opts, nil
	}

	opts.FuzzerType = optionalString(cmd, FlagFuzzerType)
	opts.Limits = config.Limits{
		OutputDir: stringFlag(cmd, FlagOutput),
	}
	if value := optionalUint64(cmd, FlagMaxIterations); value != nil {
		opts.Limits.MaxIterations = *value
	}
	if value := optionalUint64(cmd, FlagGasLimit); value != nil {
		opts.Limits.GasLimit = *value
	}
	if supplied(cmd, FlagDuration) {
		if cmd.Flags().Changed(FlagDuration) {
			opts.Limits.Duration, _ = cmd.Flags().GetDuration(FlagDuration)
		} else {
			opts.Limits.Duration = viper.GetDuration(viperKey(FlagDuration))
		}
	}
	if supplied(cmd, FlagSeed) {
		if cmd.Flags().Changed(FlagSeed) {
			opts.Limits.Seed, _ = cmd.Flags().GetInt64(FlagSeed)
		} else {
			opts.Limits.Seed = viper.GetInt64(viperKey(FlagSeed))
		}
	}
	if value := optionalBool(cmd, FlagStopOnBug); value != nil {
		opts.Limits.StopOnBug = *value
	}
	return opts, nil
}
