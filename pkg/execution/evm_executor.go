/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: evm_executor.go
Description: In-memory EVM executor for the Akaylee fuzzer. Deploys compiled contracts
into a fresh state, runs calldata test cases against them, records (contract, pc)
coverage and fans every opcode out to the registered tracers. State persists between
calls so later calls see what earlier ones wrote; reverted calls leave no trace.
*/

package execution

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
	"github.com/kleascm/akaylee-evm/pkg/contracts"
	"github.com/kleascm/akaylee-evm/pkg/core"
	"github.com/sirupsen/logrus"
)

// Execution environment defaults
const (
	DefaultGasLimit uint64 = 10_000_000
	DefaultChainID  uint64 = 1
)

// DefaultOrigin sends every deployment and fuzzed call
var DefaultOrigin = common.HexToAddress("0x8EF508Aca04B32Ff3ba5003177cb18BfA6Cd79dd")

// Tracer observes the opcodes executed by fuzzed calls
type Tracer interface {
	// Reset is called before every fuzzed call
	Reset()
	// OnOpcode is called before each opcode; stack has the top element last
	OnOpcode(contract common.Address, pc uint64, op vm.OpCode, stack []uint256.Int)
}

// EVMConfig describes the block environment of the local chain
type EVMConfig struct {
	GasLimit    uint64
	ChainID     uint64
	BlockNumber uint64
	Timestamp   uint64
	Origin      common.Address
}

// Deployment is a contract living in the executor's state
type Deployment struct {
	Name    string
	Address common.Address
	Code    []byte // Runtime code
}

type coveragePoint struct {
	contract common.Address
	pc       uint64
}

// EVMExecutor implements core.Executor on go-ethereum's runtime environment
type EVMExecutor struct {
	runtimeConfig *runtime.Config
	gasLimit      uint64
	logger        *logrus.Logger

	deployments []Deployment
	addresses   map[string]common.Address
	tracers     []Tracer

	tracing  bool
	hits     map[coveragePoint]struct{}
	coverage map[coveragePoint]struct{}
}

// NewEVMExecutor creates an executor with an empty state
func NewEVMExecutor(cfg EVMConfig, logger *logrus.Logger) *EVMExecutor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	if cfg.ChainID == 0 {
		cfg.ChainID = DefaultChainID
	}
	if cfg.Origin == (common.Address{}) {
		cfg.Origin = DefaultOrigin
	}
	if cfg.Timestamp == 0 {
		cfg.Timestamp = uint64(time.Now().Unix())
	}

	e := &EVMExecutor{
		gasLimit:  cfg.GasLimit,
		logger:    logger,
		addresses: make(map[string]common.Address),
		hits:      make(map[coveragePoint]struct{}),
		coverage:  make(map[coveragePoint]struct{}),
	}

	e.runtimeConfig = &runtime.Config{
		ChainConfig: chainConfig(cfg.ChainID),
		Origin:      cfg.Origin,
		BlockNumber: new(big.Int).SetUint64(cfg.BlockNumber),
		Time:        cfg.Timestamp,
		GasLimit:    cfg.GasLimit,
		Value:       new(big.Int),
		Random:      &common.Hash{},
		EVMConfig: vm.Config{
			Tracer: &tracing.Hooks{OnOpcode: e.onOpcode},
		},
	}
	return e
}

// chainConfig enables every fork up to Shanghai from genesis
func chainConfig(chainID uint64) *params.ChainConfig {
	shanghaiTime := uint64(0)
	return &params.ChainConfig{
		ChainID:                 new(big.Int).SetUint64(chainID),
		HomesteadBlock:          big.NewInt(0),
		EIP150Block:             big.NewInt(0),
		EIP155Block:             big.NewInt(0),
		EIP158Block:             big.NewInt(0),
		ByzantiumBlock:          big.NewInt(0),
		ConstantinopleBlock:     big.NewInt(0),
		PetersburgBlock:         big.NewInt(0),
		IstanbulBlock:           big.NewInt(0),
		MuirGlacierBlock:        big.NewInt(0),
		BerlinBlock:             big.NewInt(0),
		LondonBlock:             big.NewInt(0),
		ArrowGlacierBlock:       big.NewInt(0),
		GrayGlacierBlock:        big.NewInt(0),
		MergeNetsplitBlock:      big.NewInt(0),
		ShanghaiTime:            &shanghaiTime,
		TerminalTotalDifficulty: big.NewInt(0),
	}
}

// AddTracer registers a tracer for fuzzed calls. Deployments are not traced.
func (e *EVMExecutor) AddTracer(tracer Tracer) {
	e.tracers = append(e.tracers, tracer)
}

// Deploy runs the contract's creation code with its constructor arguments
func (e *EVMExecutor) Deploy(info contracts.ContractInfo) (common.Address, error) {
	if _, exists := e.addresses[info.Name]; exists {
		return common.Address{}, fmt.Errorf("contract %s is already deployed", info.Name)
	}

	code, address, _, err := runtime.Create(info.DeployData(), e.runtimeConfig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to deploy %s: %w", info.Name, err)
	}
	if len(code) == 0 {
		return common.Address{}, fmt.Errorf("failed to deploy %s: constructor returned no runtime code", info.Name)
	}

	e.addresses[info.Name] = address
	e.deployments = append(e.deployments, Deployment{
		Name:    info.Name,
		Address: address,
		Code:    code,
	})

	e.logger.WithFields(logrus.Fields{
		"contract": info.Name,
		"address":  address.Hex(),
		"size":     len(code),
	}).Info("Contract deployed")

	return address, nil
}

// Deployments returns the deployed contracts in deployment order
func (e *EVMExecutor) Deployments() []Deployment {
	return append([]Deployment(nil), e.deployments...)
}

// Address returns where the named contract was deployed
func (e *EVMExecutor) Address(name string) (common.Address, bool) {
	address, ok := e.addresses[name]
	return address, ok
}

// CoveragePoints returns the number of distinct (contract, pc) pairs reached so far
func (e *EVMExecutor) CoveragePoints() int {
	return len(e.coverage)
}

// Execute implements core.Executor
func (e *EVMExecutor) Execute(ctx context.Context, testCase *core.TestCase) (*core.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	address, ok := e.addresses[testCase.Target]
	if !ok {
		return nil, fmt.Errorf("unknown target contract %q", testCase.Target)
	}

	for point := range e.hits {
		delete(e.hits, point)
	}
	for _, tracer := range e.tracers {
		tracer.Reset()
	}

	start := time.Now()
	e.tracing = true
	ret, leftOverGas, err := runtime.Call(address, testCase.Data, e.runtimeConfig)
	e.tracing = false

	result := &core.ExecutionResult{
		TestCaseID: testCase.ID,
		Status:     classify(err),
		ReturnData: ret,
		GasUsed:    e.gasLimit - leftOverGas,
		Duration:   time.Since(start),
		Err:        err,
		Coverage:   e.collectCoverage(),
	}
	return result, nil
}

// classify maps an EVM error to an execution status
func classify(err error) core.ExecutionStatus {
	switch {
	case err == nil:
		return core.StatusSuccess
	case errors.Is(err, vm.ErrExecutionReverted):
		return core.StatusRevert
	default:
		return core.StatusError
	}
}

// collectCoverage merges this call's hits into the global set
func (e *EVMExecutor) collectCoverage() *core.Coverage {
	coverage := &core.Coverage{Points: len(e.hits)}
	for point := range e.hits {
		if _, seen := e.coverage[point]; !seen {
			e.coverage[point] = struct{}{}
			coverage.NewPoints++
		}
		coverage.Hash ^= pointHash(point)
	}
	return coverage
}

func pointHash(point coveragePoint) uint64 {
	h := fnv.New64a()
	h.Write(point.contract.Bytes())
	var pc [8]byte
	for i := 0; i < 8; i++ {
		pc[i] = byte(point.pc >> (8 * i))
	}
	h.Write(pc[:])
	return h.Sum64()
}

func (e *EVMExecutor) onOpcode(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
	if !e.tracing || scope == nil {
		return
	}

	contract := scope.Address()
	e.hits[coveragePoint{contract: contract, pc: pc}] = struct{}{}

	if len(e.tracers) == 0 {
		return
	}
	stack := scope.StackData()
	for _, tracer := range e.tracers {
		tracer.OnOpcode(contract, pc, vm.OpCode(op), stack)
	}
}
