// Package check implements the config validation subcommand.
package check

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtoivane/auradsp/internal/config"
)

// exit code for a configuration that fails validation
const exitBadConfig = 101

// Command creates the check subcommand: validate a configuration file
// and exit without starting the engine.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "check [config file]",
		Short: "Validate a configuration file and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := config.LoadValidate(args[0]); err != nil {
				fmt.Println("Config is not valid")
				fmt.Println(err)
				cmd.SilenceUsage = true
				cmd.SilenceErrors = true
				// Non-zero exit with the dedicated bad-config code.
				return exitError{code: exitBadConfig, err: err}
			}
			fmt.Println("Config is valid")
			return nil
		},
	}
}

// exitError carries an exit code through cobra's error return.
type exitError struct {
	code int
	err  error
}

func (e exitError) Error() string { return e.err.Error() }

// Code returns the process exit code for this error.
func (e exitError) Code() int { return e.code }
