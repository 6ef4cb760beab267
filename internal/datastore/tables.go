package datastore

import (
	"context"
	"slices"

	"github.com/helpdesk-tools/deskmigrate/internal/errors"
)

// HasTable reports whether a table exists in the current database.
func (s *Store) HasTable(ctx context.Context, table string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, cancelledError(err, "has-table")
	}

	var n int64
	if err := s.db.WithContext(ctx).Raw(s.dialect.TableExists(), table).Scan(&n).Error; err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, cancelledError(ctxErr, "has-table")
		}
		return false, dbError(err, "has-table", "", "table", table)
	}
	return n > 0, nil
}

// Columns returns the column names of a table in table order.
// Table names contain spaces; never route them through gorm's Table().
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.WithContext(ctx).Raw("SELECT * FROM " + s.Quote(table) + " LIMIT 1").Rows()
	if err != nil {
		return nil, dbError(err, "columns", "", "table", table)
	}
	defer rows.Close() //nolint:errcheck // read-only probe

	names, err := rows.Columns()
	if err != nil {
		return nil, dbError(err, "columns", "", "table", table)
	}
	return names, nil
}

// SharedColumns compares two tables' columns. shared lists the columns of
// src that dst also has, in src order; dropped lists those dst lacks.
func (s *Store) SharedColumns(ctx context.Context, src, dst string) (shared, dropped []string, err error) {
	srcCols, err := s.Columns(ctx, src)
	if err != nil {
		return nil, nil, err
	}
	dstCols, err := s.Columns(ctx, dst)
	if err != nil {
		return nil, nil, err
	}

	for _, col := range srcCols {
		if slices.Contains(dstCols, col) {
			shared = append(shared, col)
		} else {
			dropped = append(dropped, col)
		}
	}
	return shared, dropped, nil
}

// CountRows returns the number of rows in a table.
func (s *Store) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Raw("SELECT COUNT(*) FROM " + s.Quote(table)).Scan(&n).Error; err != nil {
		return 0, dbError(err, "count-rows", "", "table", table)
	}
	return n, nil
}

// CountWhere counts the rows of table where column equals value.
func (s *Store) CountWhere(ctx context.Context, table, column string, value any) (int64, error) {
	var n int64
	query := "SELECT COUNT(*) FROM " + s.Quote(table) + " WHERE " + s.Quote(column) + " = ?"
	if err := s.db.WithContext(ctx).Raw(query, value).Scan(&n).Error; err != nil {
		return 0, dbError(err, "count-where", "", "table", table, "column", column)
	}
	return n, nil
}

// InsertIgnoreSelect copies every row of src into dst over columns, skipping
// rows whose key already exists in dst. It returns the number of rows inserted.
func (s *Store) InsertIgnoreSelect(ctx context.Context, dst, src string, columns []string) (int64, error) {
	if len(columns) == 0 {
		return 0, validationError("no columns to copy", "columns", src)
	}

	query := s.dialect.InsertIgnoreSelect(s.Quote(dst), s.Quote(src), s.QuoteColumns(columns))
	result := s.db.WithContext(ctx).Exec(query)
	if result.Error != nil {
		return 0, dbError(result.Error, "insert-ignore-select", errors.PriorityHigh, "source", src, "target", dst)
	}
	return result.RowsAffected, nil
}

// UpdateWhere sets column to to on every row of table where it equals from.
func (s *Store) UpdateWhere(ctx context.Context, table, column string, from, to any) (int64, error) {
	query := "UPDATE " + s.Quote(table) + " SET " + s.Quote(column) + " = ? WHERE " + s.Quote(column) + " = ?"
	result := s.db.WithContext(ctx).Exec(query, to, from)
	if result.Error != nil {
		return 0, dbError(result.Error, "update", errors.PriorityHigh, "table", table, "column", column)
	}
	return result.RowsAffected, nil
}

// DeleteWhere deletes the rows of table where column equals value.
func (s *Store) DeleteWhere(ctx context.Context, table, column string, value any) (int64, error) {
	query := "DELETE FROM " + s.Quote(table) + " WHERE " + s.Quote(column) + " = ?"
	result := s.db.WithContext(ctx).Exec(query, value)
	if result.Error != nil {
		return 0, dbError(result.Error, "delete", errors.PriorityHigh, "table", table, "column", column)
	}
	return result.RowsAffected, nil
}

// MissingKeys counts rows of src whose name has no match in dst.
func (s *Store) MissingKeys(ctx context.Context, src, dst string) (int64, error) {
	var n int64
	query := "SELECT COUNT(*) FROM " + s.Quote(src) + " o WHERE NOT EXISTS (SELECT 1 FROM " +
		s.Quote(dst) + " n WHERE n.name = o.name)"
	if err := s.db.WithContext(ctx).Raw(query).Scan(&n).Error; err != nil {
		return 0, dbError(err, "missing-keys", "", "source", src, "target", dst)
	}
	return n, nil
}

// DuplicateValues counts values of column that occur more than once among
// the rows where filterColumn equals filterValue.
func (s *Store) DuplicateValues(ctx context.Context, table, column, filterColumn string, filterValue any) (int64, error) {
	var n int64
	col := s.Quote(column)
	query := "SELECT COUNT(*) FROM (SELECT " + col + " FROM " + s.Quote(table) +
		" WHERE " + s.Quote(filterColumn) + " = ? GROUP BY " + col + " HAVING COUNT(*) > 1) d"
	if err := s.db.WithContext(ctx).Raw(query, filterValue).Scan(&n).Error; err != nil {
		return 0, dbError(err, "duplicate-values", "", "table", table, "column", column)
	}
	return n, nil
}

// DropTable drops a table if it exists.
func (s *Store) DropTable(ctx context.Context, table string) error {
	if err := s.db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + s.Quote(table)).Error; err != nil {
		return dbError(err, "drop-table", errors.PriorityHigh, "table", table)
	}
	return nil
}
