/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: encoding.go
Description: Zero-value ABI encoding used for constructor arguments and seed calldata.
*/

package contracts

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const wordSize = 32

// EncodeZeroArgs encodes the zero value of every argument. Static values are zero
// words, dynamic values point at empty tails.
func EncodeZeroArgs(args abi.Arguments) []byte {
	types := make([]abi.Type, len(args))
	for i, arg := range args {
		types[i] = arg.Type
	}
	return encodeTuple(types)
}

// SeedCalldata returns selector plus zero-valued arguments for a method
func SeedCalldata(method abi.Method) []byte {
	data := make([]byte, 0, 4+len(method.Inputs)*wordSize)
	data = append(data, method.ID...)
	return append(data, EncodeZeroArgs(method.Inputs)...)
}

func encodeTuple(types []abi.Type) []byte {
	headSize := 0
	for _, t := range types {
		if isDynamic(t) {
			headSize += wordSize
		} else {
			headSize += staticSize(t)
		}
	}

	head := make([]byte, 0, headSize)
	var tail []byte
	for _, t := range types {
		if !isDynamic(t) {
			head = append(head, make([]byte, staticSize(t))...)
			continue
		}
		head = append(head, word(uint64(headSize+len(tail)))...)
		tail = append(tail, encodeZeroValue(t)...)
	}
	return append(head, tail...)
}

func encodeZeroValue(t abi.Type) []byte {
	switch t.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy:
		// zero length
		return make([]byte, wordSize)
	case abi.ArrayTy:
		elems := make([]abi.Type, t.Size)
		for i := range elems {
			elems[i] = *t.Elem
		}
		return encodeTuple(elems)
	case abi.TupleTy:
		return encodeTuple(tupleTypes(t))
	default:
		return make([]byte, wordSize)
	}
}

func isDynamic(t abi.Type) bool {
	switch t.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy:
		return true
	case abi.ArrayTy:
		return isDynamic(*t.Elem)
	case abi.TupleTy:
		for _, elem := range t.TupleElems {
			if isDynamic(*elem) {
				return true
			}
		}
	}
	return false
}

func staticSize(t abi.Type) int {
	switch t.T {
	case abi.ArrayTy:
		return t.Size * staticSize(*t.Elem)
	case abi.TupleTy:
		size := 0
		for _, elem := range t.TupleElems {
			size += staticSize(*elem)
		}
		return size
	default:
		return wordSize
	}
}

func tupleTypes(t abi.Type) []abi.Type {
	types := make([]abi.Type, len(t.TupleElems))
	for i, elem := range t.TupleElems {
		types[i] = *elem
	}
	return types
}

func word(v uint64) []byte {
	w := make([]byte, wordSize)
	binary.BigEndian.PutUint64(w[wordSize-8:], v)
	return w
}
