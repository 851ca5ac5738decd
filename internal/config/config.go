// Package config handles configuration for stakesim, including defaults,
// JSON overlay, and command-line flags.
package config

import (
	"fmt"

	"github.com/dmitrijs2005/stakecore/internal/rent"
	"github.com/gagliardetto/solana-go"
)

// DefaultProgramID is the address the staking program runs under when none is configured.
const DefaultProgramID = "5KrmMNrmreCgj6YKQ45Bq2JpFoRFB4Uvi1dZ7tQb1ZHb"

// Config holds runtime settings.
//
// Fields:
//   - DatabaseDSN: SQLite path or postgres:// URL.
//   - ProgramID: base58 address of the staking program; vault authorities derive from it.
//   - LamportsPerByteYear / ExemptionThreshold: rent parameters.
//   - StakeAmount: tokens moved by the demo stake/unstake round trip.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	DatabaseDSN         string
	ProgramID           string
	LamportsPerByteYear uint64
	ExemptionThreshold  float64
	StakeAmount         uint64
	LogLevel            string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	r := rent.Default()
	c.DatabaseDSN = "stakecore.db"
	c.ProgramID = DefaultProgramID
	c.LamportsPerByteYear = r.LamportsPerByteYear
	c.ExemptionThreshold = r.ExemptionThreshold
	c.StakeAmount = 1_000
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags in args
// (without the program name).
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN is empty")
	}
	if _, err := c.Program(); err != nil {
		return err
	}
	if c.ExemptionThreshold < 0 {
		return fmt.Errorf("exemption threshold must not be negative, got %v", c.ExemptionThreshold)
	}
	return nil
}

// Program parses ProgramID.
func (c *Config) Program() (solana.PublicKey, error) {
	id, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid program id %q: %w", c.ProgramID, err)
	}
	return id, nil
}

// Rent returns the configured rent parameters.
func (c *Config) Rent() rent.Rent {
	return rent.Rent{
		LamportsPerByteYear: c.LamportsPerByteYear,
		ExemptionThreshold:  c.ExemptionThreshold,
	}
}
