/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: config.go
Description: On-chain forking context for fuzzing campaigns. Owns the default endpoint,
chain id and block number, and resolves the operator's enable flag and overrides into
an optional forking configuration.
*/

package onchain

import "fmt"

const (
	// DefaultEndpoint is the public RPC endpoint used when forking is enabled without --onchain-url
	DefaultEndpoint = "https://bsc-dataseed1.binance.org/"
	// DefaultChainID is the chain the default endpoint serves
	DefaultChainID uint32 = 56
	// DefaultBlockNumber is reported when no block was requested; it means "latest"
	DefaultBlockNumber uint64 = 0
)

// Config describes which live chain state a campaign may read through.
// A nil BlockNumber means the head block, pinned once when the fork connects.
type Config struct {
	Endpoint    string  `json:"endpoint" validate:"required,url"`
	ChainID     uint32  `json:"chain_id" validate:"gt=0"`
	BlockNumber *uint64 `json:"block_number,omitempty"`
}

// New creates an on-chain configuration. The block number pointer is copied.
func New(endpoint string, chainID uint32, blockNumber *uint64) Config {
	cfg := Config{
		Endpoint: endpoint,
		ChainID:  chainID,
	}
	if blockNumber != nil {
		block := *blockNumber
		cfg.BlockNumber = &block
	}
	return cfg
}

// Latest reports whether the campaign forks from the head block
func (c Config) Latest() bool {
	return c.BlockNumber == nil
}

// Block returns the requested block, or DefaultBlockNumber when forking from head
func (c Config) Block() uint64 {
	if c.BlockNumber == nil {
		return DefaultBlockNumber
	}
	return *c.BlockNumber
}

// String renders the config for logs and dry runs
func (c Config) String() string {
	block := "latest"
	if !c.Latest() {
		block = fmt.Sprintf("%d", *c.BlockNumber)
	}
	return fmt.Sprintf("%s (chain %d, block %s)", c.Endpoint, c.ChainID, block)
}

// Options carries the raw operator input. Nil pointers mean "not supplied".
type Options struct {
	Enabled     *bool
	Endpoint    *string
	ChainID     *uint32
	BlockNumber *uint64
}

// Resolve turns the operator input into an optional forking configuration.
// Overrides are ignored unless forking is enabled; each missing override falls back
// to its own default.
func Resolve(opts Options) *Config {
	if opts.Enabled == nil || !*opts.Enabled {
		return nil
	}

	endpoint := DefaultEndpoint
	if opts.Endpoint != nil {
		endpoint = *opts.Endpoint
	}

	chainID := DefaultChainID
	if opts.ChainID != nil {
		chainID = *opts.ChainID
	}

	cfg := New(endpoint, chainID, opts.BlockNumber)
	return &cfg
}

// IgnoredOverrides lists the override flags supplied while forking is disabled
func (o Options) IgnoredOverrides() []string {
	if o.Enabled != nil && *o.Enabled {
		return nil
	}

	var ignored []string
	if o.Endpoint != nil {
		ignored = append(ignored, "onchain-url")
	}
	if o.ChainID != nil {
		ignored = append(ignored, "onchain-chain-id")
	}
	if o.BlockNumber != nil {
		ignored = append(ignored, "onchain-block-number")
	}
	return ignored
}
