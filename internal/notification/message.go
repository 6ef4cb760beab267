package notification

import (
	"fmt"
	"strings"

	"github.com/helpdesk-tools/deskmigrate/internal/conf"
	"github.com/helpdesk-tools/deskmigrate/internal/migration"
)

// RunNotice formats the title and body announcing the outcome of a run.
func RunNotice(site string, stats *migration.Stats, runErr error) (title, body string) {
	if site == "" {
		site = "unknown site"
	}

	var b strings.Builder
	if runErr != nil {
		title = "Helpdesk migration failed: " + site
		fmt.Fprintf(&b, "Migration of %s failed: %v\n", site, runErr)
		b.WriteString("Maintenance mode is still enabled. Repair the database, then run `" + conf.MaintenanceOffCommand + "`.")
		if stats != nil && stats.RunID != "" {
			fmt.Fprintf(&b, "\nRun ID: %s", stats.RunID)
		}
		return title, b.String()
	}

	title = "Helpdesk migration finished: " + site
	if stats == nil {
		return title, "Migration of " + site + " finished."
	}
	if stats.DryRun {
		title = "Helpdesk migration plan: " + site
	}

	b.WriteString(stats.Summary())
	if stats.Settings != nil {
		fmt.Fprintf(&b, "\nSettings rows moved: %d", stats.Settings.MovedRows)
	}
	if len(stats.Attachments) > 0 {
		var repointed int64
		for _, a := range stats.Attachments {
			repointed += a.Repointed
		}
		fmt.Fprintf(&b, "\nAttachments repointed: %d", repointed)
	}
	if stats.Removal != nil {
		fmt.Fprintf(&b, "\nLegacy tables removed: %d", len(stats.Removal.DroppedTables))
		if len(stats.Removal.KeptTables) > 0 {
			fmt.Fprintf(&b, "\nLegacy tables kept with uncopied rows: %d", len(stats.Removal.KeptTables))
		}
	}
	if stats.RunID != "" {
		fmt.Fprintf(&b, "\nRun ID: %s", stats.RunID)
	}
	return title, b.String()
}
