/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: client.go
Description: Connection to the forked chain. Validates the forking configuration,
dials the RPC endpoint, checks the remote chain id and pins the block the campaign
executes against.
*/

package onchain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-playground/validator/v10"
)

// ChainReader is the subset of the RPC client a fork needs
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// DialFunc opens a ChainReader for an endpoint
type DialFunc func(ctx context.Context, endpoint string) (ChainReader, error)

// DialEthClient dials a JSON-RPC endpoint with go-ethereum's ethclient
func DialEthClient(ctx context.Context, endpoint string) (ChainReader, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Fork is a live connection pinned to one chain and block
type Fork struct {
	config Config
	client ChainReader
	block  uint64
}

// Validate checks the configuration before any network access
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid on-chain configuration: %w", err)
	}
	return nil
}

// Connect dials the endpoint and pins the fork block. When the configuration asks
// for the latest block, the current head is resolved once here.
func Connect(ctx context.Context, cfg Config, dial DialFunc) (*Fork, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dial == nil {
		dial = DialEthClient
	}

	client, err := dial(ctx, cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Endpoint, err)
	}

	remoteID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to query chain id: %w", err)
	}
	if !remoteID.IsUint64() || remoteID.Uint64() != uint64(cfg.ChainID) {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: endpoint reports %s, configured %d", remoteID, cfg.ChainID)
	}

	block := cfg.Block()
	if cfg.Latest() {
		head, err := client.BlockNumber(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to resolve latest block: %w", err)
		}
		block = head
	}

	return &Fork{
		config: cfg,
		client: client,
		block:  block,
	}, nil
}

// ChainID returns the verified chain id
func (f *Fork) ChainID() uint32 {
	return f.config.ChainID
}

// BlockNumber returns the pinned block
func (f *Fork) BlockNumber() uint64 {
	return f.block
}

// Close releases the RPC connection
func (f *Fork) Close() {
	f.client.Close()
}
