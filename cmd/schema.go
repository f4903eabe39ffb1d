package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fgrehm/dcvet/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the embedded devcontainer.json JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := cmd.OutOrStdout().Write(schema.Source())
		return err
	},
}
