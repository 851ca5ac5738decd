package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/stakecore/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   database DSN
//	-p string   staking program id (base58)
//	-r uint     rent, lamports per byte-year
//	-x float    rent exemption threshold
//	-a uint     demo stake amount
//	-l string   log level
//
// Flags not listed here (for example -c) are filtered out first.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-d", "-p", "-r", "-x", "-a", "-l"})

	fs := flag.NewFlagSet("stakesim", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.ProgramID, "p", config.ProgramID, "staking program id")
	fs.Uint64Var(&config.LamportsPerByteYear, "r", config.LamportsPerByteYear, "lamports per byte-year")
	fs.Float64Var(&config.ExemptionThreshold, "x", config.ExemptionThreshold, "rent exemption threshold")
	fs.Uint64Var(&config.StakeAmount, "a", config.StakeAmount, "demo stake amount")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}
	return nil
}
