/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics_writer.go
Description: Utility for writing campaign results to the output directory.
Handles timestamped, strategy-specific subdirectory naming.
Ensures directories exist and writes JSON files for easy analysis.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteCampaignResult writes a result under outputDir/<fuzzerType>/ with a timestamped name
func WriteCampaignResult(outputDir string, fuzzerType string, campaignID string, result interface{}) (string, error) {
	// Ensure output directory and subdirectory exist
	resultDir := filepath.Join(outputDir, fuzzerType)
	if err := os.MkdirAll(resultDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Generate filename: 2024-06-11_01-30-00_cmp_3f2a9c1e.json
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	short := campaignID
	if len(short) > 8 {
		short = short[:8]
	}
	filename := fmt.Sprintf("%s_%s_%s.json", timestamp, fuzzerType, short)
	filePath := filepath.Join(resultDir, filename)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}

	return filePath, nil
}
