package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/helpdesk-tools/deskmigrate/cmd/doctypes"
	"github.com/helpdesk-tools/deskmigrate/cmd/maintenance"
	"github.com/helpdesk-tools/deskmigrate/cmd/migrate"
	"github.com/helpdesk-tools/deskmigrate/internal/buildinfo"
	"github.com/helpdesk-tools/deskmigrate/internal/conf"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(flags *conf.RuntimeFlags, build *buildinfo.Context) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "deskmigrate",
		Short:         "Migrate a Frappe Desk site to Helpdesk",
		Version:       build.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	v := viper.New()
	if err := setupFlags(rootCmd, v, flags); err != nil {
		// Only possible when the flag definitions are broken.
		panic(err)
	}

	rootCmd.AddCommand(
		doctypes.Command(),
		migrate.Command(flags, build),
		maintenance.Command(flags),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Flags take precedence over DESKMIGRATE_* environment variables.
		flags.SitesPath = v.GetString("sites_path")

		// Printing the doctype names needs neither a site nor logging.
		if cmd.Name() == doctypes.CommandName {
			return nil
		}
		return initialize(flags)
	}

	return rootCmd
}

// initialize sets up the central logger before any subcommand runs.
func initialize(flags *conf.RuntimeFlags) error {
	cl, err := logger.NewCentralLogger(flags.LoggingConfig())
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	logger.SetGlobal(cl)
	return nil
}

// setupFlags defines the flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, v *viper.Viper, flags *conf.RuntimeFlags) error {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.SitesPath, "sites-path", ".", "Path to the bench sites directory (env DESKMIGRATE_SITES_PATH)")
	pf.StringVar(&flags.Site, "site", "", "Site to migrate (default: currentsite.txt, then default_site)")
	pf.BoolVarP(&flags.Debug, "debug", "d", false, "Enable debug output")
	pf.StringVar(&flags.LogFile, "log-file", "", "Also write JSON logs to this file, rotated")

	v.SetEnvPrefix(conf.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := v.BindPFlag("sites_path", pf.Lookup("sites-path")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := v.BindEnv("sites_path"); err != nil {
		return fmt.Errorf("error binding environment: %w", err)
	}

	return nil
}
