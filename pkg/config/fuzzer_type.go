/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: fuzzer_type.go
Description: Closed set of fuzzing strategies and the parser for their command-line
identifiers. Unknown identifiers are configuration errors, never a fallback.
*/

package config

// FuzzerType selects the fuzzing algorithm family of a campaign
type FuzzerType int

const (
	// ComparisonGuided steers mutation with comparison operands seen during execution
	ComparisonGuided FuzzerType = iota
	// DataflowGuided steers mutation with storage reads and writes
	DataflowGuided
	// Basic is reserved. Dispatching it performs no fuzzing.
	Basic
)

// Identifiers accepted on the command line
const (
	CmpFuzzerID      = "cmp"
	DataflowFuzzerID = "df"
	BasicFuzzerID    = "basic"

	// DefaultFuzzerID is used when no fuzzer type is supplied
	DefaultFuzzerID = CmpFuzzerID
)

var fuzzerIDs = map[string]FuzzerType{
	CmpFuzzerID:      ComparisonGuided,
	DataflowFuzzerID: DataflowGuided,
	BasicFuzzerID:    Basic,
}

// ParseFuzzerType maps an identifier to its strategy. Matching is case-sensitive.
func ParseFuzzerType(id string) (FuzzerType, error) {
	if fuzzerType, ok := fuzzerIDs[id]; ok {
		return fuzzerType, nil
	}
	return 0, &ConfigError{Field: "fuzzer-type", Value: id, Err: ErrUnknownFuzzer}
}

// ResolveFuzzerType parses an optional identifier; nil selects DefaultFuzzerID
func ResolveFuzzerType(id *string) (FuzzerType, error) {
	if id == nil {
		return ParseFuzzerType(DefaultFuzzerID)
	}
	return ParseFuzzerType(*id)
}

// FuzzerTypes returns every strategy in declaration order
func FuzzerTypes() []FuzzerType {
	return []FuzzerType{ComparisonGuided, DataflowGuided, Basic}
}

// String returns the command-line identifier
func (f FuzzerType) String() string {
	switch f {
	case ComparisonGuided:
		return CmpFuzzerID
	case DataflowGuided:
		return DataflowFuzzerID
	case Basic:
		return BasicFuzzerID
	default:
		return "unknown"
	}
}

// Description returns a short human readable label
func (f FuzzerType) Description() string {
	switch f {
	case ComparisonGuided:
		return "Comparison-guided: solves branch conditions from observed comparison operands"
	case DataflowGuided:
		return "Dataflow-guided: favours inputs whose storage writes reach later reads"
	case Basic:
		return "Basic: reserved, performs no fuzzing"
	default:
		return "unknown fuzzer type"
	}
}

// Implemented reports whether dispatching the strategy runs an engine
func (f FuzzerType) Implemented() bool {
	return f == ComparisonGuided || f == DataflowGuided
}
