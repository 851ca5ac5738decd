package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/stakecore/internal/flagx"
)

// JSONConfig is the on-disk form of Config. Keys missing from the file keep
// the value Config already had.
type JSONConfig struct {
	DatabaseDSN         string  `json:"database_dsn"`
	ProgramID           string  `json:"program_id"`
	LamportsPerByteYear uint64  `json:"lamports_per_byte_year"`
	ExemptionThreshold  float64 `json:"exemption_threshold"`
	StakeAmount         uint64  `json:"stake_amount"`
	LogLevel            string  `json:"log_level"`
}

// parseJSON overlays the file named by -c/-config onto config. Without the
// flag nothing is loaded.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFile(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	c := JSONConfig{
		DatabaseDSN:         config.DatabaseDSN,
		ProgramID:           config.ProgramID,
		LamportsPerByteYear: config.LamportsPerByteYear,
		ExemptionThreshold:  config.ExemptionThreshold,
		StakeAmount:         config.StakeAmount,
		LogLevel:            config.LogLevel,
	}
	if err := json.Unmarshal(file, &c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.DatabaseDSN = c.DatabaseDSN
	config.ProgramID = c.ProgramID
	config.LamportsPerByteYear = c.LamportsPerByteYear
	config.ExemptionThreshold = c.ExemptionThreshold
	config.StakeAmount = c.StakeAmount
	config.LogLevel = c.LogLevel
	return nil
}
