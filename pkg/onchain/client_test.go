/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: client_test.go
Description: Tests for fork connection: chain id verification and block pinning
against a fake RPC client.
*/

package onchain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/kleascm/akaylee-evm/pkg/onchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChain struct {
	chainID int64
	head    uint64
	closed  bool
}

func (f *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeChain) Close() { f.closed = true }

func dialer(chain *fakeChain) onchain.DialFunc {
	return func(ctx context.Context, endpoint string) (onchain.ChainReader, error) {
		return chain, nil
	}
}

// TestConnectPinsLatestBlock tests that the head block is pinned for the sentinel
func TestConnectPinsLatestBlock(t *testing.T) {
	chain := &fakeChain{chainID: 56, head: 1234}
	fork, err := onchain.Connect(context.Background(), onchain.New(onchain.DefaultEndpoint, 56, nil), dialer(chain))
	require.NoError(t, err)
	defer fork.Close()

	assert.Equal(t, uint64(1234), fork.BlockNumber())
	assert.Equal(t, uint32(56), fork.ChainID())
}

// TestConnectKeepsExplicitBlock tests that an explicit block is used as is
func TestConnectKeepsExplicitBlock(t *testing.T) {
	chain := &fakeChain{chainID: 1, head: 1234}
	fork, err := onchain.Connect(context.Background(), onchain.New("http://localhost:8545", 1, ptr(uint64(10))), dialer(chain))
	require.NoError(t, err)

	assert.Equal(t, uint64(10), fork.BlockNumber())
}

// TestConnectChainMismatch tests that a wrong remote chain is rejected
func TestConnectChainMismatch(t *testing.T) {
	chain := &fakeChain{chainID: 1}
	_, err := onchain.Connect(context.Background(), onchain.New(onchain.DefaultEndpoint, 56, nil), dialer(chain))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id mismatch")
	assert.True(t, chain.closed)
}

// TestConnectDialError tests dial failures
func TestConnectDialError(t *testing.T) {
	dial := func(ctx context.Context, endpoint string) (onchain.ChainReader, error) {
		return nil, errors.New("refused")
	}
	_, err := onchain.Connect(context.Background(), onchain.New(onchain.DefaultEndpoint, 56, nil), dial)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
}

// TestConnectRejectsInvalidConfig tests validation before dialing
func TestConnectRejectsInvalidConfig(t *testing.T) {
	dialed := false
	dial := func(ctx context.Context, endpoint string) (onchain.ChainReader, error) {
		dialed = true
		return &fakeChain{}, nil
	}
	_, err := onchain.Connect(context.Background(), onchain.New("", 56, nil), dial)
	require.Error(t, err)
	assert.False(t, dialed)
}
