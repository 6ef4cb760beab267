package datastore

import (
	"fmt"
	"strconv"

	"github.com/helpdesk-tools/deskmigrate/internal/conf"
)

// Dialect renders the statements that differ between database engines.
// Identifier arguments are already quoted.
type Dialect interface {
	// Name returns the db_type the dialect serves.
	Name() string
	// InsertIgnoreSelect copies rows from src into dst over columns,
	// leaving rows whose key already exists in dst untouched.
	InsertIgnoreSelect(dst, src, columns string) string
	// DropSequence removes a sequence if it exists.
	DropSequence(seq string) string
	// CreateSequence returns the statements creating a sequence that
	// hands out start as its next value.
	CreateSequence(seq string, start int64) []string
	// NextSequenceValue selects the value the sequence hands out next,
	// without consuming it.
	NextSequenceValue(seq string) string
	// MaxNumericName selects the largest purely numeric name in table,
	// or 0 when there is none.
	MaxNumericName(table string) string
	// TableExists counts the tables of the current database named by the
	// single, unquoted parameter.
	TableExists() string
}

// dialectFor returns the dialect for a site's db_type.
func dialectFor(dbType string) (Dialect, error) {
	switch dbType {
	case conf.DBTypeMariaDB:
		return mariaDBDialect{}, nil
	case conf.DBTypePostgres:
		return postgresDialect{}, nil
	case conf.DBTypeSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}
}

type mariaDBDialect struct{}

func (mariaDBDialect) Name() string { return conf.DBTypeMariaDB }

func (mariaDBDialect) InsertIgnoreSelect(dst, src, columns string) string {
	return "INSERT IGNORE INTO " + dst + " (" + columns + ") SELECT " + columns + " FROM " + src
}

func (mariaDBDialect) DropSequence(seq string) string {
	return "DROP SEQUENCE IF EXISTS " + seq
}

func (mariaDBDialect) CreateSequence(seq string, start int64) []string {
	return []string{"CREATE SEQUENCE " + seq + " START WITH " + strconv.FormatInt(start, 10) + " NOCACHE NOCYCLE"}
}

func (mariaDBDialect) NextSequenceValue(seq string) string {
	return "SELECT next_not_cached_value FROM " + seq
}

func (mariaDBDialect) MaxNumericName(table string) string {
	return "SELECT COALESCE(MAX(CAST(name AS UNSIGNED)), 0) FROM " + table + " WHERE name REGEXP '^[0-9]+$'"
}

func (mariaDBDialect) TableExists() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return conf.DBTypePostgres }

func (postgresDialect) InsertIgnoreSelect(dst, src, columns string) string {
	return "INSERT INTO " + dst + " (" + columns + ") SELECT " + columns + " FROM " + src + " ON CONFLICT DO NOTHING"
}

func (postgresDialect) DropSequence(seq string) string {
	return "DROP SEQUENCE IF EXISTS " + seq
}

func (postgresDialect) CreateSequence(seq string, start int64) []string {
	return []string{"CREATE SEQUENCE " + seq + " START WITH " + strconv.FormatInt(start, 10)}
}

func (postgresDialect) NextSequenceValue(seq string) string {
	return "SELECT CASE WHEN is_called THEN last_value + 1 ELSE last_value END FROM " + seq
}

func (postgresDialect) MaxNumericName(table string) string {
	return "SELECT COALESCE(MAX(CAST(name AS BIGINT)), 0) FROM " + table + " WHERE name::text ~ '^[0-9]+$'"
}

func (postgresDialect) TableExists() string {
	return "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?"
}

// sqliteDialect emulates a sequence with a one-row table.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return conf.DBTypeSQLite }

func (sqliteDialect) InsertIgnoreSelect(dst, src, columns string) string {
	return "INSERT OR IGNORE INTO " + dst + " (" + columns + ") SELECT " + columns + " FROM " + src
}

func (sqliteDialect) DropSequence(seq string) string {
	return "DROP TABLE IF EXISTS " + seq
}

func (sqliteDialect) CreateSequence(seq string, start int64) []string {
	return []string{
		"CREATE TABLE " + seq + " (next_val INTEGER NOT NULL)",
		"INSERT INTO " + seq + " (next_val) VALUES (" + strconv.FormatInt(start, 10) + ")",
	}
}

func (sqliteDialect) NextSequenceValue(seq string) string {
	return "SELECT next_val FROM " + seq
}

func (sqliteDialect) MaxNumericName(table string) string {
	return "SELECT COALESCE(MAX(CAST(name AS INTEGER)), 0) FROM " + table + " WHERE name <> '' AND name NOT GLOB '*[^0-9]*'"
}

func (sqliteDialect) TableExists() string {
	return "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
}
