// Package migrate provides the migrate-from-frappedesk command.
package migrate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helpdesk-tools/deskmigrate/internal/buildinfo"
	"github.com/helpdesk-tools/deskmigrate/internal/conf"
	"github.com/helpdesk-tools/deskmigrate/internal/datastore"
	"github.com/helpdesk-tools/deskmigrate/internal/errors"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
	"github.com/helpdesk-tools/deskmigrate/internal/migration"
	"github.com/helpdesk-tools/deskmigrate/internal/notification"
	"github.com/helpdesk-tools/deskmigrate/internal/observability"
)

const (
	// reportingTimeout bounds the metrics push and notifications after a run.
	reportingTimeout = 30 * time.Second
	telemetryFlush   = 2 * time.Second
)

// Options are the flags of the migrate command.
type Options struct {
	Settings        bool
	Attachments     bool
	RemoveOldTables bool
	ForceRemove     bool
	DryRun          bool
	SkipVerify      bool
	ReportPath      string
	Pushgateway     string
	NotifyURLs      []string
}

// Command creates the migrate-from-frappedesk command.
func Command(flags *conf.RuntimeFlags, build *buildinfo.Context) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:   "migrate-from-frappedesk",
		Short: "Copy Frappe Desk data into the Helpdesk doctypes",
		Long: `Copies the rows of every legacy Frappe Desk doctype into its Helpdesk
counterpart, regenerates the Helpdesk sequences and optionally migrates the
settings, repoints file attachments and drops the legacy tables. Legacy
tables without a Helpdesk counterpart are kept unless --force-remove is given.

The site is put into maintenance mode for the duration of the run. If the run
fails, maintenance mode is left on; repair the site and run
"deskmigrate set-maintenance-mode off".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), flags, build, opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.Settings, "settings", false, "Migrate the Frappe Desk Settings singleton to HD Settings")
	f.BoolVar(&opts.Attachments, "attachments", false, "Repoint file attachments to the new doctypes")
	f.BoolVar(&opts.RemoveOldTables, "remove-old-tables", false, "Drop the legacy tables after a successful migration")
	f.BoolVar(&opts.ForceRemove, "force-remove", false, "With --remove-old-tables, also drop legacy tables whose rows could not be copied")
	f.BoolVar(&opts.DryRun, "dry-run", false, "Report what would be migrated without writing anything")
	f.BoolVar(&opts.SkipVerify, "skip-verify", false, "Skip post-migration verification")
	f.StringVar(&opts.ReportPath, "report", "", "Write a YAML report of the run to this file")
	f.StringVar(&opts.Pushgateway, "pushgateway", "", "Push run metrics to this Prometheus Pushgateway URL")
	f.StringArrayVar(&opts.NotifyURLs, "notify", nil, "Send the outcome to this shoutrrr service URL (repeatable)")

	return cmd
}

// Run migrates the site selected by flags.
func Run(ctx context.Context, flags *conf.RuntimeFlags, build *buildinfo.Context, opts Options, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	site, err := flags.ResolveSite()
	if err != nil {
		return err
	}
	settings, err := conf.Load(site)
	if err != nil {
		return err
	}

	if settings.SentryDSN != "" {
		if err := errors.InitSentry(settings.SentryDSN, build.Release()); err != nil {
			return err
		}
		defer errors.FlushTelemetry(telemetryFlush)
	}

	runID := uuid.NewString()
	ctx = logger.WithTraceID(ctx, runID)
	log := logger.Global().Module("migrate").WithContext(ctx).With(logger.String("site", site.Name))

	// Bad notification URLs fail before anything is touched.
	var notifier *notification.Notifier
	if len(opts.NotifyURLs) > 0 {
		notifier, err = notification.New(opts.NotifyURLs, notification.DefaultTimeout, logger.Global().Module("notification"))
		if err != nil {
			return err
		}
	}

	if opts.ForceRemove && !opts.RemoveOldTables {
		log.Warn("--force-remove has no effect without --remove-old-tables")
	}

	log.Info("opening database",
		logger.String("db_type", settings.DBType),
		logger.String("dsn", settings.SanitizedDSN()))
	store, err := datastore.Open(settings, logger.Global().Module("datastore"))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("failed to close database", logger.Error(err))
		}
	}()

	if !opts.DryRun {
		if enabled, err := conf.MaintenanceMode(site); err == nil && enabled {
			log.Warn("maintenance mode was already enabled")
		}
		if err := conf.SetMaintenanceMode(site, true); err != nil {
			return err
		}
		log.Info("maintenance mode enabled")
	}

	migrator := migration.New(store, logger.Global().Module("migration"), migration.Options{
		RunID:           runID,
		Site:            site.Name,
		Settings:        opts.Settings,
		Attachments:     opts.Attachments,
		RemoveOldTables: opts.RemoveOldTables,
		ForceRemove:     opts.ForceRemove,
		DryRun:          opts.DryRun,
		SkipVerify:      opts.SkipVerify,
	})
	stats, runErr := migrator.Run(ctx)

	if !opts.DryRun {
		if runErr == nil {
			if err := conf.SetMaintenanceMode(site, false); err != nil {
				runErr = err
			} else {
				log.Info("maintenance mode disabled")
			}
		}
		if runErr != nil {
			log.Error("migration failed, maintenance mode left enabled", logger.Error(runErr))
			runErr = fmt.Errorf("migration of %s failed, maintenance mode is still enabled; repair the site, then run %q: %w",
				site.Name, conf.MaintenanceOffCommand, runErr)
		}
	}

	if stats != nil {
		stats.Print(out)
		if opts.ReportPath != "" {
			if err := migration.WriteReport(opts.ReportPath, stats); err != nil {
				log.Warn("failed to write report", logger.String("path", opts.ReportPath), logger.Error(err))
			} else {
				log.Info("report written", logger.String("path", opts.ReportPath))
			}
		}
	}

	// The run's own context may be cancelled already; reporting still goes out.
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportingTimeout)
	defer cancel()

	if opts.Pushgateway != "" {
		if err := pushMetrics(reportCtx, opts.Pushgateway, site.Name, stats, runErr == nil); err != nil {
			log.Warn("failed to push metrics", logger.Error(err))
		}
	}
	if notifier != nil {
		title, body := notification.RunNotice(site.Name, stats, runErr)
		if err := notifier.Send(reportCtx, title, body); err != nil {
			log.Warn("failed to send notification", logger.Error(err))
		}
	}

	return runErr
}

// pushMetrics records stats into a fresh registry and pushes it.
func pushMetrics(ctx context.Context, url, site string, stats *migration.Stats, success bool) error {
	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}
	recordStats(m, stats, success)
	return m.Push(ctx, url, site)
}

func recordStats(m *observability.Metrics, stats *migration.Stats, success bool) {
	if stats == nil {
		m.Migration.RecordRun(0, 0, success, time.Now())
		return
	}

	for i := range stats.Doctypes {
		t := &stats.Doctypes[i]
		m.Migration.RecordDoctype(t.Old, t.Status, t.SourceRows, t.Inserted, t.Skipped)
	}
	if stats.Settings != nil {
		m.Migration.RecordSettings(stats.Settings.MovedRows)
	}
	var repointed int64
	for _, a := range stats.Attachments {
		repointed += a.Repointed
	}
	m.Migration.RecordAttachments(repointed)
	for _, seq := range stats.Sequences {
		m.Migration.RecordSequence(seq.Sequence, seq.Start)
	}
	if stats.Removal != nil {
		m.Migration.RecordTablesDropped(len(stats.Removal.DroppedTables))
	}

	finished := stats.EndTime
	if finished.IsZero() {
		finished = time.Now()
	}
	m.Migration.RecordRun(stats.Duration, stats.Statements, success, finished)
}
