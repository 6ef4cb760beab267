// Package migration copies a site's legacy Frappe Desk doctypes into the
// Helpdesk "HD" doctypes and carries the related settings, attachments and
// sequences across.
package migration

import (
	"context"
	"time"

	"github.com/helpdesk-tools/deskmigrate/internal/datastore"
	"github.com/helpdesk-tools/deskmigrate/internal/doctypes"
	"github.com/helpdesk-tools/deskmigrate/internal/errors"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

const (
	singlesDoctypeColumn = "doctype"
	fileAttachedColumn   = "attached_to_doctype"
)

// Options selects the optional steps of a run. ForceRemove also drops
// legacy tables whose rows had no new table to go to.
type Options struct {
	RunID           string
	Site            string
	Settings        bool
	Attachments     bool
	RemoveOldTables bool
	ForceRemove     bool
	DryRun          bool
	SkipVerify      bool
}

// Migrator runs the migration against one site database.
type Migrator struct {
	store *datastore.Store
	log   logger.Logger
	opts  Options
}

// New creates a Migrator.
func New(store *datastore.Store, log logger.Logger, opts Options) *Migrator {
	if log == nil {
		log = logger.Global().Module("migration")
	}
	return &Migrator{store: store, log: log, opts: opts}
}

// withStore returns a copy of m bound to another store, e.g. a transaction.
func (m *Migrator) withStore(store *datastore.Store) *Migrator {
	return &Migrator{store: store, log: m.log, opts: m.opts}
}

// Run executes the migration. Row copies, the settings move and attachment
// repointing are committed together in one transaction; sequence and table
// DDL follows after the commit.
func (m *Migrator) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		RunID:     m.opts.RunID,
		Site:      m.opts.Site,
		Database:  m.store.Location(),
		DryRun:    m.opts.DryRun,
		StartTime: time.Now(),
	}
	startStatements := m.store.Statements()
	defer func() {
		stats.EndTime = time.Now()
		stats.Duration = stats.EndTime.Sub(stats.StartTime)
		stats.Statements = m.store.Statements() - startStatements
	}()

	log := m.log.WithContext(ctx)

	if m.opts.DryRun {
		log.Info("dry run, no changes will be written")
		return stats, m.plan(ctx, stats)
	}

	log.Info("starting migration",
		logger.Bool("settings", m.opts.Settings),
		logger.Bool("attachments", m.opts.Attachments),
		logger.Bool("remove_old_tables", m.opts.RemoveOldTables))

	err := m.store.Transaction(ctx, func(tx *datastore.Store) error {
		txm := m.withStore(tx)

		var err error
		if stats.Doctypes, err = txm.CopyDoctypes(ctx); err != nil {
			return err
		}
		if m.opts.Settings {
			if stats.Settings, err = txm.MigrateSettings(ctx); err != nil {
				return err
			}
		}
		if m.opts.Attachments {
			if stats.Attachments, err = txm.MigrateAttachments(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return stats, stepError(err, "copy", "rolled back")
	}
	log.Info("data changes committed")

	if !m.opts.SkipVerify {
		if err := NewVerifier(m.store, m.log).Verify(ctx, stats, m.opts); err != nil {
			return stats, err
		}
		stats.Verified = true
	}

	if stats.Sequences, err = m.GenerateSequences(ctx); err != nil {
		return stats, stepError(err, "sequences", "")
	}

	if m.opts.RemoveOldTables {
		if stats.Removal, err = m.RemoveOldData(ctx, stats.Doctypes); err != nil {
			return stats, stepError(err, "remove-old-data", "")
		}
	}

	log.Info("migration finished", logger.String("summary", stats.Summary()))
	return stats, nil
}

// CopyDoctypes copies every legacy doctype table into its new table, in
// mapping order. Pairs with a missing table on either side are skipped.
func (m *Migrator) CopyDoctypes(ctx context.Context) ([]TableStats, error) {
	results := make([]TableStats, 0, len(doctypes.Mapping))

	for _, pair := range doctypes.Mapping {
		if err := ctx.Err(); err != nil {
			return results, cancelled(err, "copy")
		}

		ts, err := m.copyDoctype(ctx, pair)
		if err != nil {
			return results, err
		}
		results = append(results, ts)
	}
	return results, nil
}

func (m *Migrator) copyDoctype(ctx context.Context, pair doctypes.Pair) (TableStats, error) {
	start := time.Now()
	ts := TableStats{Old: pair.Old, New: pair.New}
	log := m.log.With(logger.String("old", pair.Old), logger.String("new", pair.New))

	oldTable, newTable := doctypes.TableName(pair.Old), doctypes.TableName(pair.New)

	reason, err := m.missingTable(ctx, oldTable, newTable)
	if err != nil {
		return ts, doctypeError(err, pair)
	}
	if reason != "" {
		ts.Status, ts.Reason = StatusSkipped, reason
		log.Info("skipping doctype", logger.String("reason", reason))
		return ts, nil
	}

	columns, dropped, err := m.store.SharedColumns(ctx, oldTable, newTable)
	if err != nil {
		return ts, doctypeError(err, pair)
	}
	if len(dropped) > 0 {
		ts.DroppedColumns = dropped
		log.Warn("columns missing from new doctype will not be copied", logger.Strings("dropped_columns", dropped))
	}

	if ts.SourceRows, err = m.store.CountRows(ctx, oldTable); err != nil {
		return ts, doctypeError(err, pair)
	}
	if ts.Inserted, err = m.store.InsertIgnoreSelect(ctx, newTable, oldTable, columns); err != nil {
		return ts, doctypeError(err, pair)
	}

	ts.Status = StatusCopied
	ts.Skipped = max(ts.SourceRows-ts.Inserted, 0)
	ts.Duration = time.Since(start)

	log.Info("copied doctype",
		logger.Int64("source_rows", ts.SourceRows),
		logger.Int64("inserted", ts.Inserted),
		logger.Int64("skipped", ts.Skipped),
		logger.Duration("elapsed", ts.Duration))
	return ts, nil
}

// missingTable returns a skip reason when either table is absent.
func (m *Migrator) missingTable(ctx context.Context, oldTable, newTable string) (string, error) {
	exists, err := m.store.HasTable(ctx, oldTable)
	if err != nil {
		return "", err
	}
	if !exists {
		return ReasonOldMissing, nil
	}

	exists, err = m.store.HasTable(ctx, newTable)
	if err != nil {
		return "", err
	}
	if !exists {
		return ReasonNewMissing, nil
	}
	return "", nil
}

// MigrateSettings replaces the new settings singleton with the legacy one.
// A site without legacy settings rows keeps its new settings untouched.
func (m *Migrator) MigrateSettings(ctx context.Context) (*SettingsStats, error) {
	singles := doctypes.TableName(doctypes.SinglesDoctype)
	if err := m.requireTable(ctx, singles); err != nil {
		return nil, err
	}

	legacy, err := m.store.CountWhere(ctx, singles, singlesDoctypeColumn, doctypes.OldSettings)
	if err != nil {
		return nil, err
	}
	if legacy == 0 {
		// A repeated run must not wipe settings an earlier run moved.
		m.log.Info("no legacy settings to migrate",
			logger.String("from", doctypes.OldSettings),
			logger.String("to", doctypes.NewSettings))
		return &SettingsStats{}, nil
	}

	replaced, err := m.store.DeleteWhere(ctx, singles, singlesDoctypeColumn, doctypes.NewSettings)
	if err != nil {
		return nil, err
	}
	moved, err := m.store.UpdateWhere(ctx, singles, singlesDoctypeColumn, doctypes.OldSettings, doctypes.NewSettings)
	if err != nil {
		return nil, err
	}

	m.log.Info("migrated settings",
		logger.String("from", doctypes.OldSettings),
		logger.String("to", doctypes.NewSettings),
		logger.Int64("replaced_rows", replaced),
		logger.Int64("moved_rows", moved))

	return &SettingsStats{ReplacedRows: replaced, MovedRows: moved}, nil
}

// MigrateAttachments repoints file attachments from legacy doctypes to
// their new doctypes.
func (m *Migrator) MigrateAttachments(ctx context.Context) ([]AttachmentStats, error) {
	files := doctypes.TableName(doctypes.FileDoctype)
	if err := m.requireTable(ctx, files); err != nil {
		return nil, err
	}

	results := make([]AttachmentStats, 0, len(doctypes.Mapping))
	var total int64
	for _, pair := range doctypes.Mapping {
		if err := ctx.Err(); err != nil {
			return results, cancelled(err, "attachments")
		}

		n, err := m.store.UpdateWhere(ctx, files, fileAttachedColumn, pair.Old, pair.New)
		if err != nil {
			return results, doctypeError(err, pair)
		}
		if n > 0 {
			m.log.Debug("repointed attachments",
				logger.String("old", pair.Old),
				logger.String("new", pair.New),
				logger.Int64("files", n))
		}
		total += n
		results = append(results, AttachmentStats{Old: pair.Old, New: pair.New, Repointed: n})
	}

	m.log.Info("migrated attachments", logger.Int64("files", total))
	return results, nil
}

// GenerateSequences recreates the id sequences of the autoincrement
// doctypes so new ids continue after the highest existing one.
func (m *Migrator) GenerateSequences(ctx context.Context) ([]SequenceStats, error) {
	results := make([]SequenceStats, 0, len(doctypes.WithSequence))

	for _, doctype := range doctypes.WithSequence {
		if err := ctx.Err(); err != nil {
			return results, cancelled(err, "sequences")
		}

		seq, err := m.nextID(ctx, doctype)
		if err != nil {
			return results, err
		}
		if err := m.store.RecreateSequence(ctx, seq.Sequence, seq.Start); err != nil {
			return results, err
		}

		m.log.Info("regenerated sequence",
			logger.String("doctype", doctype),
			logger.String("sequence", seq.Sequence),
			logger.Int64("start", seq.Start))
		results = append(results, seq)
	}
	return results, nil
}

// nextID computes where a doctype's sequence should resume.
func (m *Migrator) nextID(ctx context.Context, doctype string) (SequenceStats, error) {
	seq := SequenceStats{Doctype: doctype, Sequence: doctypes.SequenceName(doctype), Start: 1}
	table := doctypes.TableName(doctype)

	exists, err := m.store.HasTable(ctx, table)
	if err != nil || !exists {
		return seq, err
	}

	highest, err := m.store.MaxNumericName(ctx, table)
	if err != nil {
		return seq, err
	}
	seq.Start = highest + 1
	return seq, nil
}

// RemoveOldData drops the legacy doctype tables and the legacy settings
// rows. A table whose copy was skipped for lack of a new table is kept
// unless ForceRemove is set.
func (m *Migrator) RemoveOldData(ctx context.Context, copies []TableStats) (*RemovalStats, error) {
	removal := &RemovalStats{}
	uncopied := uncopiedDoctypes(copies)

	for _, pair := range doctypes.Mapping {
		if err := ctx.Err(); err != nil {
			return removal, cancelled(err, "remove-old-data")
		}

		table := doctypes.TableName(pair.Old)
		exists, err := m.store.HasTable(ctx, table)
		if err != nil {
			return removal, doctypeError(err, pair)
		}
		if !exists {
			continue
		}

		if uncopied[pair.Old] {
			rows, err := m.store.CountRows(ctx, table)
			if err != nil {
				return removal, doctypeError(err, pair)
			}
			if !m.opts.ForceRemove {
				m.log.Warn("keeping legacy table, its rows were not copied",
					logger.String("table", table),
					logger.String("new_table", doctypes.TableName(pair.New)),
					logger.Int64("rows", rows))
				removal.KeptTables = append(removal.KeptTables, table)
				continue
			}
			m.log.Warn("dropping legacy table with uncopied rows",
				logger.String("table", table),
				logger.Int64("rows", rows))
		}

		if err := m.store.DropTable(ctx, table); err != nil {
			return removal, doctypeError(err, pair)
		}
		removal.DroppedTables = append(removal.DroppedTables, table)
		m.log.Debug("dropped legacy table", logger.String("table", table))
	}

	singles := doctypes.TableName(doctypes.SinglesDoctype)
	exists, err := m.store.HasTable(ctx, singles)
	if err != nil {
		return removal, err
	}
	if exists {
		if removal.SettingsRowsDeleted, err = m.store.DeleteWhere(ctx, singles, singlesDoctypeColumn, doctypes.OldSettings); err != nil {
			return removal, err
		}
	}

	m.log.Info("removed legacy data",
		logger.Int("dropped_tables", len(removal.DroppedTables)),
		logger.Int("kept_tables", len(removal.KeptTables)),
		logger.Int64("settings_rows_deleted", removal.SettingsRowsDeleted))
	return removal, nil
}

// uncopiedDoctypes returns the legacy doctypes skipped because their new
// table is missing.
func uncopiedDoctypes(copies []TableStats) map[string]bool {
	uncopied := make(map[string]bool)
	for i := range copies {
		if copies[i].Status == StatusSkipped && copies[i].Reason == ReasonNewMissing {
			uncopied[copies[i].Old] = true
		}
	}
	return uncopied
}

func (m *Migrator) requireTable(ctx context.Context, table string) error {
	exists, err := m.store.HasTable(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Newf("required table %q does not exist", table).
			Component("migration").
			Category(errors.CategoryNotFound).
			Context("table", table).
			Build()
	}
	return nil
}
