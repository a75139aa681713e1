/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: oracle.go
Description: Default bug oracle. Reports Solidity Panic(uint256) reverts and invalid
opcodes, the two outcomes a correct contract never produces.
*/

package fuzzers

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"
	"github.com/kleascm/akaylee-evm/pkg/config"
)

// panicSelector is bytes4(keccak256("Panic(uint256)"))
var panicSelector = []byte{0x4e, 0x48, 0x7b, 0x71}

// panicReasons maps compiler panic codes to their meaning
var panicReasons = map[uint64]string{
	0x00: "generic compiler panic",
	0x01: "assertion failed",
	0x11: "arithmetic overflow or underflow",
	0x12: "division or modulo by zero",
	0x21: "invalid enum conversion",
	0x22: "corrupted storage byte array",
	0x31: "pop on empty array",
	0x32: "array index out of bounds",
	0x41: "memory allocation overflow",
	0x51: "call to zero-initialized function",
}

// PanicOracle flags panic reverts and invalid opcodes
type PanicOracle struct{}

// NewPanicOracle creates the default oracle
func NewPanicOracle() *PanicOracle {
	return &PanicOracle{}
}

// Name implements config.Oracle
func (o *PanicOracle) Name() string {
	return "panic"
}

// Inspect implements config.Oracle
func (o *PanicOracle) Inspect(outcome config.Outcome) (string, bool) {
	var invalid *vm.ErrInvalidOpCode
	if errors.As(outcome.Err, &invalid) {
		return invalid.Error(), true
	}

	if !outcome.Reverted {
		return "", false
	}
	code, ok := PanicCode(outcome.ReturnData)
	if !ok {
		return "", false
	}

	if !code.IsUint64() {
		return fmt.Sprintf("panic %s: unknown panic code", code.Hex()), true
	}
	reason, known := panicReasons[code.Uint64()]
	if !known {
		reason = "unknown panic code"
	}
	return fmt.Sprintf("panic 0x%02x: %s", code.Uint64(), reason), true
}

// PanicCode decodes Panic(uint256) revert data
func PanicCode(returnData []byte) (*uint256.Int, bool) {
	if len(returnData) != 4+32 || !bytes.Equal(returnData[:4], panicSelector) {
		return nil, false
	}
	return new(uint256.Int).SetBytes32(returnData[4:]), true
}
