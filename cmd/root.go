// Package cmd wires the cobra CLI (spec.md §6): a root command with
// start/showConfig/version subcommands, grounded on the teacher's
// cmd/root.go (cobra tree, persistent flags, background API server).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	a := NewAppState()

	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "SKALE IMA relayer agent",
	}

	addAppPersistantFlags(rootCmd, a)

	rootCmd.AddCommand(
		addJsonFlag(newConfigCmd(a)),
		newStartCmd(a),
		versionCmd,
	)

	return rootCmd
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
