/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: testcontracts.go
Description: Hand-assembled contracts used by executor and engine tests.
*/

package testcontracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/kleascm/akaylee-evm/pkg/contracts"
)

// Magic is the argument that drives Guard into its INVALID opcode
const Magic = 0x2a

// PokeABI declares the single method both contracts answer to. The runtimes ignore
// the selector.
const PokeABI = `[{"type":"function","name":"poke","stateMutability":"nonpayable","inputs":[{"name":"x","type":"uint256"}],"outputs":[]}]`

// GuardRuntime reads the first argument word and
//   - hits INVALID when it equals Magic
//   - reverts with empty data when it equals 1
//   - otherwise stores it in slot 0
var GuardRuntime = []byte{
	0x60, 0x04, // 00 PUSH1 4
	0x35,       // 02 CALLDATALOAD
	0x80,       // 03 DUP1
	0x60, 0x2a, // 04 PUSH1 Magic
	0x14,       // 06 EQ
	0x60, 0x15, // 07 PUSH1 0x15
	0x57,       // 09 JUMPI
	0x80,       // 0a DUP1
	0x60, 0x01, // 0b PUSH1 1
	0x14,       // 0d EQ
	0x60, 0x17, // 0e PUSH1 0x17
	0x57,       // 10 JUMPI
	0x60, 0x00, // 11 PUSH1 0
	0x55,       // 13 SSTORE
	0x00,       // 14 STOP
	0x5b,       // 15 JUMPDEST
	0xfe,       // 16 INVALID
	0x5b,       // 17 JUMPDEST
	0x60, 0x00, // 18 PUSH1 0
	0x60, 0x00, // 1a PUSH1 0
	0xfd,       // 1c REVERT
}

// CounterRuntime loads slot 0, reverts with Panic(0x01) once it exceeds 2 and
// otherwise stores the incremented value
var CounterRuntime = []byte{
	0x60, 0x00, // 00 PUSH1 0
	0x54,       // 02 SLOAD
	0x80,       // 03 DUP1
	0x60, 0x02, // 04 PUSH1 2
	0x10,       // 06 LT           2 < counter
	0x60, 0x12, // 07 PUSH1 0x12
	0x57,       // 09 JUMPI
	0x60, 0x01, // 0a PUSH1 1
	0x01,       // 0c ADD
	0x60, 0x00, // 0d PUSH1 0
	0x55,       // 0f SSTORE
	0x00,       // 10 STOP
	0x00,       // 11 STOP
	0x5b,       // 12 JUMPDEST
	0x63, 0x4e, 0x48, 0x7b, 0x71, // 13 PUSH4 Panic selector
	0x60, 0xe0, // 18 PUSH1 224
	0x1b,       // 1a SHL
	0x60, 0x00, // 1b PUSH1 0
	0x52,       // 1d MSTORE
	0x60, 0x01, // 1e PUSH1 1
	0x60, 0x04, // 20 PUSH1 4
	0x52,       // 22 MSTORE
	0x60, 0x24, // 23 PUSH1 36
	0x60, 0x00, // 25 PUSH1 0
	0xfd,       // 27 REVERT
}

// Creation wraps runtime code in a constructor that returns it
func Creation(runtime []byte) []byte {
	prefix := []byte{
		0x60, byte(len(runtime)), // PUSH1 len
		0x80,       // DUP1
		0x60, 0x0b, // PUSH1 11, offset of the runtime code
		0x60, 0x00, // PUSH1 0
		0x39,       // CODECOPY
		0x60, 0x00, // PUSH1 0
		0xf3,       // RETURN
	}
	return append(prefix, runtime...)
}

// Contract returns a ContractInfo deploying runtime under name with PokeABI
func Contract(name string, runtime []byte) contracts.ContractInfo {
	parsed, err := abi.JSON(strings.NewReader(PokeABI))
	if err != nil {
		panic(err)
	}
	return contracts.ContractInfo{
		Name:         name,
		SourcePrefix: "testdata/" + name,
		ABI:          parsed,
		Code:         Creation(runtime),
	}
}

// Calldata builds a call with a zero selector and one argument word
func Calldata(arg byte) []byte {
	data := make([]byte, 4+common.HashLength)
	data[len(data)-1] = arg
	return data
}
