/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dispatcher.go
Description: Hands an assembled campaign configuration to exactly one fuzzing engine.
The switch over fuzzer types is exhaustive; the reserved basic strategy is an explicit
no-op.
*/

package dispatch

import (
	"context"
	"fmt"

	"github.com/kleascm/akaylee-evm/pkg/config"
	"github.com/sirupsen/logrus"
)

// Engine runs fuzzing campaigns. Each call blocks until the campaign ends.
type Engine interface {
	RunComparisonGuided(ctx context.Context, cfg *config.Config) error
	RunDataflowGuided(ctx context.Context, cfg *config.Config) error
}

// Dispatcher routes a configuration to its engine
type Dispatcher struct {
	engine Engine
	logger *logrus.Logger
}

// NewDispatcher creates a dispatcher. A nil logger falls back to the standard logger.
func NewDispatcher(engine Engine, logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Dispatcher{
		engine: engine,
		logger: logger,
	}
}

// Dispatch runs the campaign with the engine matching its fuzzer type
func (d *Dispatcher) Dispatch(ctx context.Context, cfg *config.Config) error {
	fuzzerType := cfg.FuzzerType()
	d.logger.WithFields(cfg.Fields()).Info("Dispatching fuzzing campaign")

	switch fuzzerType {
	case config.ComparisonGuided:
		return d.engine.RunComparisonGuided(ctx, cfg)
	case config.DataflowGuided:
		return d.engine.RunDataflowGuided(ctx, cfg)
	case config.Basic:
		d.logger.WithField("fuzzer_type", fuzzerType.String()).
			Warn("Basic fuzzer is not implemented, no fuzzing will be performed")
		return nil
	default:
		return fmt.Errorf("cannot dispatch fuzzer type %d: %w", int(fuzzerType), config.ErrUnknownFuzzer)
	}
}
