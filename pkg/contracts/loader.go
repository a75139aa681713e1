/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: loader.go
Description: Contract resolution for fuzzing campaigns. Turns a file glob, optionally
narrowed to one named contract, into compiled contracts by pairing each matched
prefix with its .abi and .bin build artifacts.
*/

package contracts

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/sirupsen/logrus"
)

const (
	abiExtension = ".abi"
	binExtension = ".bin"
)

// ErrDuplicateContract is returned when two matched artifacts share a contract name
var ErrDuplicateContract = errors.New("duplicate contract name")

// ContractInfo is one compiled contract selected for fuzzing
type ContractInfo struct {
	Name            string  `json:"name"`          // Base name of the artifact prefix
	SourcePrefix    string  `json:"source_prefix"` // Path prefix shared by the .abi and .bin files
	ABI             abi.ABI `json:"-"`             // Parsed contract ABI
	Code            []byte  `json:"-"`             // Creation bytecode
	ConstructorArgs []byte  `json:"-"`             // ABI-encoded constructor arguments
}

// Callable returns the state-changing methods of the contract sorted by name
func (c ContractInfo) Callable() []abi.Method {
	methods := make([]abi.Method, 0, len(c.ABI.Methods))
	for _, method := range c.ABI.Methods {
		if method.IsConstant() {
			continue
		}
		methods = append(methods, method)
	}
	sort.Slice(methods, func(i, j int) bool {
		return methods[i].Name < methods[j].Name
	})
	return methods
}

// Clone returns a copy sharing no bytecode, argument or ABI storage with c
func (c ContractInfo) Clone() ContractInfo {
	clone := c
	clone.Code = common.CopyBytes(c.Code)
	clone.ConstructorArgs = common.CopyBytes(c.ConstructorArgs)
	clone.ABI.Constructor = cloneMethod(c.ABI.Constructor)
	clone.ABI.Fallback = cloneMethod(c.ABI.Fallback)
	clone.ABI.Receive = cloneMethod(c.ABI.Receive)
	clone.ABI.Events = maps.Clone(c.ABI.Events)
	clone.ABI.Errors = maps.Clone(c.ABI.Errors)
	if c.ABI.Methods != nil {
		clone.ABI.Methods = make(map[string]abi.Method, len(c.ABI.Methods))
		for name, method := range c.ABI.Methods {
			clone.ABI.Methods[name] = cloneMethod(method)
		}
	}
	return clone
}

func cloneMethod(method abi.Method) abi.Method {
	method.Inputs = append(abi.Arguments(nil), method.Inputs...)
	method.Outputs = append(abi.Arguments(nil), method.Outputs...)
	method.ID = common.CopyBytes(method.ID)
	return method
}

// DeployData returns creation code followed by constructor arguments
func (c ContractInfo) DeployData() []byte {
	data := make([]byte, 0, len(c.Code)+len(c.ConstructorArgs))
	data = append(data, c.Code...)
	return append(data, c.ConstructorArgs...)
}

// Loader resolves contracts for a campaign
type Loader interface {
	// ResolveAll returns every contract discoverable through the glob
	ResolveAll(glob string) ([]ContractInfo, error)
	// ResolveTarget returns only the named contract among the glob matches
	ResolveTarget(glob string, name string) ([]ContractInfo, error)
}

// ContractLoader resolves contracts from solc build artifacts on disk
type ContractLoader struct {
	logger *logrus.Logger
}

// NewContractLoader creates a loader. A nil logger falls back to the standard logger.
func NewContractLoader(logger *logrus.Logger) *ContractLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ContractLoader{logger: logger}
}

// ResolveAll implements Loader
func (l *ContractLoader) ResolveAll(glob string) ([]ContractInfo, error) {
	return l.resolve(glob, func(string) bool { return true })
}

// ResolveTarget implements Loader
func (l *ContractLoader) ResolveTarget(glob string, name string) ([]ContractInfo, error) {
	return l.resolve(glob, func(prefix string) bool {
		return filepath.Base(prefix) == name
	})
}

// resolve loads every matched prefix accepted by keep, in prefix order
func (l *ContractLoader) resolve(glob string, keep func(prefix string) bool) ([]ContractInfo, error) {
	prefixes, err := matchPrefixes(glob)
	if err != nil {
		return nil, err
	}

	contracts := make([]ContractInfo, 0, len(prefixes))
	sources := make(map[string]string, len(prefixes))
	for _, prefix := range prefixes {
		if !keep(prefix) {
			continue
		}
		if !hasArtifacts(prefix) {
			l.logger.WithField("prefix", prefix).Debug("Skipping match without .abi/.bin pair")
			continue
		}

		info, err := loadContract(prefix)
		if err != nil {
			return nil, err
		}
		if len(info.Code) == 0 {
			l.logger.WithField("contract", info.Name).Debug("Skipping contract without creation code")
			continue
		}
		if previous, ok := sources[info.Name]; ok {
			return nil, fmt.Errorf("%w %s: %s and %s", ErrDuplicateContract, info.Name, previous, prefix)
		}
		sources[info.Name] = prefix
		contracts = append(contracts, info)
	}

	l.logger.WithFields(logrus.Fields{
		"glob":      glob,
		"contracts": len(contracts),
	}).Debug("Contracts resolved")

	return contracts, nil
}

// matchPrefixes expands the glob and returns the distinct extension-less paths
func matchPrefixes(glob string) ([]string, error) {
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("invalid contract glob %q: %w", glob, err)
	}

	seen := make(map[string]bool, len(matches))
	prefixes := make([]string, 0, len(matches))
	for _, match := range matches {
		prefix := strings.TrimSuffix(match, filepath.Ext(match))
		if seen[prefix] {
			continue
		}
		seen[prefix] = true
		prefixes = append(prefixes, prefix)
	}

	sort.Strings(prefixes)
	return prefixes, nil
}

func hasArtifacts(prefix string) bool {
	for _, ext := range []string{abiExtension, binExtension} {
		info, err := os.Stat(prefix + ext)
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// loadContract parses the .abi and .bin artifacts of one prefix
func loadContract(prefix string) (ContractInfo, error) {
	abiFile, err := os.Open(prefix + abiExtension)
	if err != nil {
		return ContractInfo{}, fmt.Errorf("failed to open ABI: %w", err)
	}
	defer abiFile.Close()

	contractABI, err := abi.JSON(abiFile)
	if err != nil {
		return ContractInfo{}, fmt.Errorf("failed to parse ABI %s: %w", prefix+abiExtension, err)
	}

	raw, err := os.ReadFile(prefix + binExtension)
	if err != nil {
		return ContractInfo{}, fmt.Errorf("failed to read bytecode: %w", err)
	}

	code, err := decodeBytecode(string(raw))
	if err != nil {
		return ContractInfo{}, fmt.Errorf("failed to decode bytecode %s: %w", prefix+binExtension, err)
	}

	info := ContractInfo{
		Name:         filepath.Base(prefix),
		SourcePrefix: prefix,
		ABI:          contractABI,
		Code:         code,
	}
	if len(contractABI.Constructor.Inputs) > 0 {
		info.ConstructorArgs = EncodeZeroArgs(contractABI.Constructor.Inputs)
	}

	return info, nil
}

func decodeBytecode(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		trimmed = "0x" + trimmed
	}
	return hexutil.Decode(trimmed)
}
