package migration

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Doctype copy outcomes.
const (
	StatusCopied     = "copied"
	StatusSkipped    = "skipped"
	StatusWouldCopy  = "would-copy"
	ReasonOldMissing = "old table missing"
	ReasonNewMissing = "new table missing"
)

// Stats describes one migration run.
type Stats struct {
	RunID      string        `yaml:"run_id"`
	Site       string        `yaml:"site,omitempty"`
	Database   string        `yaml:"database,omitempty"`
	DryRun     bool          `yaml:"dry_run"`
	StartTime  time.Time     `yaml:"start_time"`
	EndTime    time.Time     `yaml:"end_time"`
	Duration   time.Duration `yaml:"duration"`
	Statements int64         `yaml:"statements"`

	Doctypes    []TableStats      `yaml:"doctypes"`
	Settings    *SettingsStats    `yaml:"settings,omitempty"`
	Attachments []AttachmentStats `yaml:"attachments,omitempty"`
	Sequences   []SequenceStats   `yaml:"sequences"`
	Removal     *RemovalStats     `yaml:"removal,omitempty"`
	Verified    bool              `yaml:"verified"`
}

// TableStats tracks the copy of one doctype.
type TableStats struct {
	Old            string        `yaml:"old"`
	New            string        `yaml:"new"`
	Status         string        `yaml:"status"`
	Reason         string        `yaml:"reason,omitempty"`
	SourceRows     int64         `yaml:"source_rows"`
	Inserted       int64         `yaml:"inserted"`
	Skipped        int64         `yaml:"skipped"`
	DroppedColumns []string      `yaml:"dropped_columns,omitempty"`
	Duration       time.Duration `yaml:"duration"`
}

// SettingsStats tracks the settings singleton move.
type SettingsStats struct {
	ReplacedRows int64 `yaml:"replaced_rows"`
	MovedRows    int64 `yaml:"moved_rows"`
}

// AttachmentStats tracks file references repointed for one doctype.
type AttachmentStats struct {
	Old       string `yaml:"old"`
	New       string `yaml:"new"`
	Repointed int64  `yaml:"repointed"`
}

// SequenceStats tracks one regenerated sequence.
type SequenceStats struct {
	Doctype  string `yaml:"doctype"`
	Sequence string `yaml:"sequence"`
	Start    int64  `yaml:"start"`
}

// RemovalStats tracks the removal of legacy data.
type RemovalStats struct {
	DroppedTables       []string `yaml:"dropped_tables"`
	KeptTables          []string `yaml:"kept_tables,omitempty"`
	SettingsRowsDeleted int64    `yaml:"settings_rows_deleted"`
}

// Totals sums row counts over all doctypes.
func (s *Stats) Totals() (source, inserted, skipped int64) {
	for i := range s.Doctypes {
		source += s.Doctypes[i].SourceRows
		inserted += s.Doctypes[i].Inserted
		skipped += s.Doctypes[i].Skipped
	}
	return source, inserted, skipped
}

// CopiedDoctypes returns how many doctypes were copied (or would be).
func (s *Stats) CopiedDoctypes() int {
	n := 0
	for i := range s.Doctypes {
		if s.Doctypes[i].Status != StatusSkipped {
			n++
		}
	}
	return n
}

// Summary returns a one-line description of the run.
func (s *Stats) Summary() string {
	_, inserted, _ := s.Totals()
	verb := "migrated"
	if s.DryRun {
		verb = "would migrate"
	}
	return fmt.Sprintf("%s %d of %d doctypes (%d rows inserted) in %s",
		verb, s.CopiedDoctypes(), len(s.Doctypes), inserted, s.Duration.Round(time.Millisecond))
}

// Print writes a human-readable summary table.
func (s *Stats) Print(w io.Writer) {
	rule := strings.Repeat("-", 96)

	title := "Migration Summary"
	if s.DryRun {
		title = "Migration Plan (dry run)"
	}
	fmt.Fprintf(w, "\n=== %s ===\n", title)
	if s.Site != "" {
		fmt.Fprintf(w, "Site: %s\n", s.Site)
	}
	fmt.Fprintf(w, "Duration: %s\n\n", s.Duration.Round(time.Millisecond))

	fmt.Fprintf(w, "%-30s %-42s %10s %10s %10s\n", "Old doctype", "New doctype", "Source", "Inserted", "Skipped")
	fmt.Fprintln(w, rule)
	for i := range s.Doctypes {
		t := &s.Doctypes[i]
		if t.Status == StatusSkipped {
			fmt.Fprintf(w, "%-30s %-42s %32s\n", t.Old, t.New, "skipped: "+t.Reason)
			continue
		}
		fmt.Fprintf(w, "%-30s %-42s %10d %10d %10d\n", t.Old, t.New, t.SourceRows, t.Inserted, t.Skipped)
	}
	fmt.Fprintln(w, rule)
	source, inserted, skipped := s.Totals()
	fmt.Fprintf(w, "%-73s %10d %10d %10d\n", "TOTAL", source, inserted, skipped)

	if s.Settings != nil {
		fmt.Fprintf(w, "\nSettings: %d rows moved, %d stale rows replaced\n", s.Settings.MovedRows, s.Settings.ReplacedRows)
	}

	var repointed int64
	for _, a := range s.Attachments {
		repointed += a.Repointed
	}
	if len(s.Attachments) > 0 {
		fmt.Fprintf(w, "Attachments: %d file references repointed\n", repointed)
	}

	for _, seq := range s.Sequences {
		fmt.Fprintf(w, "Sequence %s starts at %d\n", seq.Sequence, seq.Start)
	}

	if s.Removal != nil {
		fmt.Fprintf(w, "Removed %d legacy tables\n", len(s.Removal.DroppedTables))
		if len(s.Removal.KeptTables) > 0 {
			fmt.Fprintf(w, "Kept %d legacy tables with uncopied rows: %s\n",
				len(s.Removal.KeptTables), strings.Join(s.Removal.KeptTables, ", "))
		}
	}
}
