package migration

import (
	"context"

	"github.com/helpdesk-tools/deskmigrate/internal/doctypes"
	"github.com/helpdesk-tools/deskmigrate/internal/logger"
)

// plan fills stats with what a real run would do, without writing.
func (m *Migrator) plan(ctx context.Context, stats *Stats) error {
	for _, pair := range doctypes.Mapping {
		if err := ctx.Err(); err != nil {
			return cancelled(err, "plan")
		}

		ts := TableStats{Old: pair.Old, New: pair.New}
		oldTable, newTable := doctypes.TableName(pair.Old), doctypes.TableName(pair.New)

		reason, err := m.missingTable(ctx, oldTable, newTable)
		if err != nil {
			return doctypeError(err, pair)
		}
		if reason != "" {
			ts.Status, ts.Reason = StatusSkipped, reason
		} else {
			ts.Status = StatusWouldCopy
			if ts.SourceRows, err = m.store.CountRows(ctx, oldTable); err != nil {
				return doctypeError(err, pair)
			}
			if _, ts.DroppedColumns, err = m.store.SharedColumns(ctx, oldTable, newTable); err != nil {
				return doctypeError(err, pair)
			}
		}

		m.log.Info("planned doctype",
			logger.String("old", pair.Old),
			logger.String("new", pair.New),
			logger.String("status", ts.Status),
			logger.String("reason", ts.Reason),
			logger.Int64("source_rows", ts.SourceRows))
		stats.Doctypes = append(stats.Doctypes, ts)
	}

	if m.opts.Settings {
		singles := doctypes.TableName(doctypes.SinglesDoctype)
		if err := m.requireTable(ctx, singles); err != nil {
			return err
		}
		moved, err := m.store.CountWhere(ctx, singles, singlesDoctypeColumn, doctypes.OldSettings)
		if err != nil {
			return err
		}
		var replaced int64
		if moved > 0 {
			if replaced, err = m.store.CountWhere(ctx, singles, singlesDoctypeColumn, doctypes.NewSettings); err != nil {
				return err
			}
		}
		stats.Settings = &SettingsStats{ReplacedRows: replaced, MovedRows: moved}
	}

	if m.opts.Attachments {
		files := doctypes.TableName(doctypes.FileDoctype)
		if err := m.requireTable(ctx, files); err != nil {
			return err
		}
		for _, pair := range doctypes.Mapping {
			n, err := m.store.CountWhere(ctx, files, fileAttachedColumn, pair.Old)
			if err != nil {
				return doctypeError(err, pair)
			}
			stats.Attachments = append(stats.Attachments, AttachmentStats{Old: pair.Old, New: pair.New, Repointed: n})
		}
	}

	for _, doctype := range doctypes.WithSequence {
		seq, err := m.nextID(ctx, doctype)
		if err != nil {
			return err
		}
		stats.Sequences = append(stats.Sequences, seq)
	}

	if m.opts.RemoveOldTables {
		removal := &RemovalStats{}
		uncopied := uncopiedDoctypes(stats.Doctypes)
		for _, pair := range doctypes.Mapping {
			table := doctypes.TableName(pair.Old)
			exists, err := m.store.HasTable(ctx, table)
			if err != nil {
				return doctypeError(err, pair)
			}
			switch {
			case !exists:
			case uncopied[pair.Old] && !m.opts.ForceRemove:
				removal.KeptTables = append(removal.KeptTables, table)
			default:
				removal.DroppedTables = append(removal.DroppedTables, table)
			}
		}
		stats.Removal = removal
	}

	return nil
}
