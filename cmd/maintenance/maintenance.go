// Package maintenance provides the command toggling a site's maintenance mode.
package maintenance

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/helpdesk-tools/deskmigrate/internal/conf"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

// Command creates the set-maintenance-mode command.
func Command(flags *conf.RuntimeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "set-maintenance-mode on|off",
		Short:     "Enable or disable maintenance mode of the site",
		Long:      "Sets maintenance_mode in the site's site_config.json. Use it to lift maintenance mode after repairing a failed migration.",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			on := args[0] == "on"

			site, err := flags.ResolveSite()
			if err != nil {
				return err
			}
			if err := conf.SetMaintenanceMode(site, on); err != nil {
				return err
			}

			logger.Global().Module("maintenance").Info("maintenance mode changed",
				logger.String("site", site.Name),
				logger.Bool("enabled", on))
			fmt.Fprintf(cmd.OutOrStdout(), "Maintenance mode for %s is %s\n", site.Name, args[0])
			return nil
		},
	}

	return cmd
}
