/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: assembler.go
Description: Campaign configuration assembly. Resolves the fuzzer type first so an
unknown strategy fails before any glob check or scan, then the on-chain context, then
the targets.
*/

package config

import (
	"errors"
	"fmt"

	"github.com/kleascm/akaylee-evm/pkg/contracts"
	"github.com/kleascm/akaylee-evm/pkg/onchain"
)

// Options is the raw operator input. Nil pointers mean the flag was not supplied.
type Options struct {
	ContractGlob   string
	TargetContract *string
	FuzzerType     *string
	OnChain        onchain.Options
	Limits         Limits
}

// Assemble resolves the options into a campaign configuration
func Assemble(opts Options, loader contracts.Loader) (*Config, error) {
	fuzzerType, err := ResolveFuzzerType(opts.FuzzerType)
	if err != nil {
		return nil, err
	}

	onChain := onchain.Resolve(opts.OnChain)

	targets, err := resolveTargets(opts, loader)
	if err != nil {
		return nil, err
	}

	return New(fuzzerType, onChain, targets, nil, opts.Limits.withDefaults()), nil
}

// resolveTargets picks single-target resolution whenever a name was supplied
func resolveTargets(opts Options, loader contracts.Loader) ([]contracts.ContractInfo, error) {
	if opts.ContractGlob == "" {
		return nil, &ConfigError{Field: "contract-glob", Err: ErrGlobRequired}
	}

	var (
		targets []contracts.ContractInfo
		err     error
	)
	if opts.TargetContract != nil {
		targets, err = loader.ResolveTarget(opts.ContractGlob, *opts.TargetContract)
	} else {
		targets, err = loader.ResolveAll(opts.ContractGlob)
	}

	switch {
	case errors.Is(err, contracts.ErrDuplicateContract):
		return nil, &ConfigError{Field: "contract-glob", Value: opts.ContractGlob, Err: err}
	case err != nil && opts.TargetContract != nil:
		return nil, fmt.Errorf("failed to resolve contract %s: %w", *opts.TargetContract, err)
	case err != nil:
		return nil, fmt.Errorf("failed to resolve contracts: %w", err)
	}
	return targets, nil
}
