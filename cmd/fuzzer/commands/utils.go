/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the Akaylee EVM commands. Provides common
configuration loading and logging setup used across all command implementations.
*/

package commands

import (
	"fmt"
	"io"

	"github.com/kleascm/akaylee-evm/pkg/logging"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from files and environment
func LoadConfig() error {
	// Set config file if specified
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("AKAYLEE")
	viper.AutomaticEnv()

	return nil
}

// SetupLogging configures the logging system from the log_* settings
func SetupLogging(console io.Writer) (*logging.Logger, error) {
	config := logging.DefaultConfig()
	if level := viper.GetString("log_level"); level != "" {
		config.Level = logging.LogLevel(level)
	}
	if format := viper.GetString("log_format"); format != "" {
		config.Format = logging.LogFormat(format)
	}
	config.OutputDir = viper.GetString("log_dir")

	logger, err := logging.NewLogger(config, console)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	return logger, nil
}
