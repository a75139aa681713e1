/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: errors.go
Description: Configuration errors raised before a campaign starts.
*/

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFuzzer is returned for fuzzer identifiers outside the supported set
	ErrUnknownFuzzer = errors.New("unknown fuzzer type")
	// ErrNoTargets is returned when contract resolution selected nothing to fuzz
	ErrNoTargets = errors.New("no contracts to fuzz")
	// ErrGlobRequired is returned when no contract glob was supplied anywhere
	ErrGlobRequired = errors.New("a contract glob is required")
)

// ConfigError is a fatal configuration problem tied to one input field
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("configuration error: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
