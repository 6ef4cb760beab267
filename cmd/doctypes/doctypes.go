// Package doctypes provides the command printing the legacy doctype names.
package doctypes

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpdesk-tools/deskmigrate/internal/doctypes"
)

// CommandName is skipped by the root command's site and logging setup.
const CommandName = "frappedesk-doctypes-str"

// Command creates the command printing the legacy doctype names as one
// comma-separated string.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   CommandName,
		Short: "Print the legacy Frappe Desk doctype names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), doctypes.LegacyNamesString())
			return err
		},
	}

	return cmd
}
