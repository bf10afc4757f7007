// Package cli implements the surge command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "surge",
	Short:   "A staged load driver for HTTP inference endpoints",
	Version: version,
	Long: `Surge drives synthetic traffic at an HTTP inference endpoint through a
staged concurrency schedule: each stage holds a target worker count until
its boundary passes, ramp-up is throttled by a spawn rate, and ramp-down
is immediate. Built for exercising endpoint autoscaling behavior.`,
	Run: func(cmd *cobra.Command, args []string) {
		// If no subcommand is provided, print help
		cmd.Help()
	},
}

// Execute runs the root command. Called by main.main().
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.AddCommand(runCmd)
}
