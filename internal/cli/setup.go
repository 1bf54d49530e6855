// Package cli holds the flag and config plumbing shared by the commands.
package cli

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"histokit/internal/config"
	"histokit/internal/logger"
	"histokit/internal/param"
)

// SetFlags collects repeated -set name=value flags in command-line order.
type SetFlags []param.Assignment

func (s *SetFlags) String() string {
	parts := make([]string, len(*s))
	for i, a := range *s {
		parts[i] = a.Name + "=" + param.FormatValue(a.Value)
	}
	return strings.Join(parts, " ")
}

// Set implements flag.Value.
func (s *SetFlags) Set(v string) error {
	a, err := param.ParseAssignment(v)
	if err != nil {
		return err
	}
	*s = append(*s, a)
	return nil
}

// Setup loads the config file and builds the console logger. verbose forces
// debug output.
func Setup(configPath string, verbose bool) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	return cfg, logger.Console(level), nil
}

// Apply updates c with the file/env assignments and then the -set flags, so
// flags win. It stops at the first invalid assignment.
func Apply(c *param.Config, fromConfig []param.Assignment, flags SetFlags) error {
	if err := c.Update(fromConfig); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := c.Update(flags); err != nil {
		return fmt.Errorf("-set: %w", err)
	}
	return nil
}
