package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newConfigCmd builds the showConfig subcommand, grounded on the
// teacher's cmd/config.go (parse once, print back as yaml or json).
func newConfigCmd(a *AppState) *cobra.Command {
	return &cobra.Command{
		Use:     "showConfig",
		Aliases: []string{"sc"},
		Short:   "Parse and print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.InitAppState()

			asJSON, err := cmd.Flags().GetBool(flagJSON)
			if err != nil {
				return err
			}

			var out []byte
			if asJSON {
				out, err = json.MarshalIndent(a.Config, "", "  ")
			} else {
				out, err = yaml.Marshal(a.Config)
			}
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
