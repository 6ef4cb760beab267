package datastore

import (
	"context"

	"github.com/helpdesk-tools/deskmigrate/internal/errors"
)

// MaxNumericName returns the largest numeric name in table, 0 if none.
func (s *Store) MaxNumericName(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Raw(s.dialect.MaxNumericName(s.Quote(table))).Scan(&n).Error; err != nil {
		return 0, dbError(err, "max-numeric-name", "", "table", table)
	}
	return n, nil
}

// RecreateSequence drops the named sequence if present and creates it so
// that its next value is start.
func (s *Store) RecreateSequence(ctx context.Context, seq string, start int64) error {
	if start < 1 {
		start = 1
	}

	quoted := s.Quote(seq)
	db := s.db.WithContext(ctx)

	if err := db.Exec(s.dialect.DropSequence(quoted)).Error; err != nil {
		return dbError(err, "drop-sequence", errors.PriorityHigh, "sequence", seq)
	}
	for _, stmt := range s.dialect.CreateSequence(quoted, start) {
		if err := db.Exec(stmt).Error; err != nil {
			return dbError(err, "create-sequence", errors.PriorityHigh, "sequence", seq, "start", start)
		}
	}
	return nil
}

// NextSequenceValue returns the value the sequence hands out next.
func (s *Store) NextSequenceValue(ctx context.Context, seq string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Raw(s.dialect.NextSequenceValue(s.Quote(seq))).Scan(&n).Error; err != nil {
		return 0, dbError(err, "next-sequence-value", "", "sequence", seq)
	}
	return n, nil
}
